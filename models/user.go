package models

type Profile struct {
	ID            int    `json:"id"`
	Nickname      string `json:"nickname"`
	Name          string `json:"nombre"`
	Email         string `json:"email"`
	RUT           string `json:"rut"`
	Phone         string `json:"telefono"`
	BipCardNumber string `json:"numero_tarjeta_bip,omitempty"`
	EmailVerified bool   `json:"email_verificado"`
	PhoneVerified bool   `json:"telefono_verificado"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Nickname        string `json:"nickname"`
	Name            string `json:"nombre"`
	Email           string `json:"email"`
	RUT             string `json:"rut"`
	Phone           string `json:"telefono"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// ProfileUpdate carries only the fields being changed.
type ProfileUpdate struct {
	Name          *string `json:"nombre,omitempty"`
	Email         *string `json:"email,omitempty"`
	Phone         *string `json:"telefono,omitempty"`
	BipCardNumber *string `json:"numero_tarjeta_bip,omitempty"`
}

type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}
