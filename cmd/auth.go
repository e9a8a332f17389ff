package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"bikemetro/models"

	"github.com/spf13/cobra"
)

// readLine prompts on out and reads one trimmed line from in. Callers reuse
// in across prompts.
func readLine(in *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func newLoginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with nickname and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envFrom(cmd)

			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if username == "" {
				if username, err = readLine(in, cmd.OutOrStdout(), "Nickname: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = readLine(in, cmd.OutOrStdout(), "Password: "); err != nil {
					return err
				}
			}
			if username == "" || password == "" {
				return fmt.Errorf("nickname and password are required")
			}

			p, err := e.state.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			colorSuccess.Fprintf(cmd.OutOrStdout(), "Welcome, %s!\n", displayName(p))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "nickname")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when empty)")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var req models.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envFrom(cmd)
			if req.PasswordConfirm == "" {
				req.PasswordConfirm = req.Password
			}

			p, err := e.state.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			colorSuccess.Fprintf(cmd.OutOrStdout(), "Account created. Welcome, %s!\n", displayName(p))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Nickname, "nickname", "", "nickname used to sign in")
	f.StringVar(&req.Name, "name", "", "full name")
	f.StringVar(&req.Email, "email", "", "email address")
	f.StringVar(&req.RUT, "rut", "", "national id (RUT)")
	f.StringVar(&req.Phone, "phone", "", "phone number")
	f.StringVar(&req.Password, "password", "", "password")
	f.StringVar(&req.PasswordConfirm, "password-confirm", "", "password confirmation (defaults to --password)")
	_ = cmd.MarkFlagRequired("nickname")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := envFrom(cmd).state.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envFrom(cmd)
			p, ok := e.state.User()
			if !ok {
				colorMuted.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", displayName(p), p.Nickname)
			return nil
		},
	}
}

func newProfileCmd() *cobra.Command {
	var name, email, phone, bip string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update the profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envFrom(cmd)
			if err := requireUser(e); err != nil {
				return err
			}

			var upd models.ProfileUpdate
			flags := cmd.Flags()
			if flags.Changed("name") {
				upd.Name = &name
			}
			if flags.Changed("email") {
				upd.Email = &email
			}
			if flags.Changed("phone") {
				upd.Phone = &phone
			}
			if flags.Changed("bip") {
				upd.BipCardNumber = &bip
			}

			p, _ := e.state.User()
			if upd != (models.ProfileUpdate{}) {
				var err error
				if p, err = e.state.UpdateProfile(cmd.Context(), upd); err != nil {
					return err
				}
				colorSuccess.Fprintln(cmd.OutOrStdout(), "Profile updated.")
			}
			renderProfile(cmd.OutOrStdout(), p)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&name, "name", "", "new full name")
	f.StringVar(&email, "email", "", "new email address")
	f.StringVar(&phone, "phone", "", "new phone number")
	f.StringVar(&bip, "bip", "", "Bip! card number")
	return cmd
}

func renderProfile(w io.Writer, p models.Profile) {
	verified := func(ok bool) string {
		if ok {
			return colorSuccess.Sprint("verified")
		}
		return colorMuted.Sprint("not verified")
	}

	fmt.Fprintf(w, "Nickname  %s\n", p.Nickname)
	fmt.Fprintf(w, "Name      %s\n", p.Name)
	fmt.Fprintf(w, "Email     %s (%s)\n", p.Email, verified(p.EmailVerified))
	fmt.Fprintf(w, "RUT       %s\n", p.RUT)
	fmt.Fprintf(w, "Phone     %s (%s)\n", p.Phone, verified(p.PhoneVerified))
	if p.BipCardNumber != "" {
		fmt.Fprintf(w, "Bip!      %s\n", p.BipCardNumber)
	}
}

func displayName(p models.Profile) string {
	if p.Name != "" {
		return p.Name
	}
	return p.Nickname
}
