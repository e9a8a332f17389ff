package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"bikemetro/internal/reservation"
	"bikemetro/models"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
)

var (
	colorError   = color.New(color.FgRed, color.Bold)
	colorSuccess = color.New(color.FgGreen)
	colorMuted   = color.New(color.Faint)
	colorHeader  = color.New(color.Bold)
)

// hexColor turns "#RRGGBB" into a foreground color, bold when unparseable.
func hexColor(hex string) *color.Color {
	h := strings.TrimPrefix(hex, "#")
	if len(h) != 6 {
		return color.New(color.Bold)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.New(color.Bold)
	}
	return color.RGB(int(v>>16&0xff), int(v>>8&0xff), int(v&0xff)).Add(color.Bold)
}

func renderStations(w io.Writer, stations []models.Station) {
	colorHeader.Fprintf(w, "%-4s %-24s %-10s %s\n", "ID", "STATION", "LINE", "FREE")
	for _, st := range stations {
		line := st.LineDisplay
		if line == "" {
			line = st.Line
		}
		free := fmt.Sprintf("%d/%d", st.AvailableSpaces, st.TotalSpaces)
		if st.AvailableSpaces == 0 {
			free = colorError.Sprint(free)
		}
		fmt.Fprintf(w, "%-4d %-24s %-10s %s\n", st.ID, st.Name, line, free)
	}
}

// renderSpaces draws the station grid, one row per line.
func renderSpaces(w io.Writer, spaces []models.Space) {
	rows := map[int][]models.Space{}
	var order []int
	for _, sp := range spaces {
		if _, ok := rows[sp.Row]; !ok {
			order = append(order, sp.Row)
		}
		rows[sp.Row] = append(rows[sp.Row], sp)
	}

	for _, row := range order {
		cells := make([]string, 0, len(rows[row]))
		for _, sp := range rows[row] {
			cell := fmt.Sprintf("[%-3s #%-3d]", sp.Code, sp.ID)
			cells = append(cells, hexColor(sp.Status.Color()).Sprint(cell))
		}
		fmt.Fprintln(w, strings.Join(cells, " "))
	}

	legend := make([]string, 0, 4)
	for _, st := range []models.SpaceStatus{models.SpaceAvailable, models.SpaceReserved, models.SpaceOccupied, models.SpaceMaintenance} {
		legend = append(legend, hexColor(st.Color()).Sprint(strings.ToLower(string(st))))
	}
	fmt.Fprintln(w, strings.Join(legend, "  "))
}

func renderReservationRow(w io.Writer, r models.Reservation, now time.Time) {
	d := reservation.Describe(r, now)
	fmt.Fprintf(w, "%s  %-20s %-4s %s  %s\n",
		r.ID,
		r.StationName,
		r.SpaceCode,
		hexColor(d.BannerColor).Sprintf("%-11s", d.BannerText),
		colorMuted.Sprint(humanize.RelTime(r.ReservedAt, now, "ago", "from now")),
	)
}

func renderReservations(w io.Writer, reservations []models.Reservation, now time.Time) {
	if len(reservations) == 0 {
		colorMuted.Fprintln(w, "No reservations.")
		return
	}
	for _, r := range reservations {
		renderReservationRow(w, r, now)
	}
}

// renderView prints the detail banner, instructions and available actions.
func renderView(w io.Writer, v reservation.View, now time.Time, freeHours int, fallbackRate decimal.Decimal) {
	r := v.Reservation
	d := v.Descriptor

	hexColor(d.BannerColor).Fprintf(w, "■ %s\n", d.BannerText)
	fmt.Fprintf(w, "Reservation  %s\n", r.ID)
	fmt.Fprintf(w, "Station      %s\n", r.StationName)
	fmt.Fprintf(w, "Space        %s\n", r.SpaceCode)
	fmt.Fprintf(w, "Reserved     %s (%s)\n", r.ReservedAt.Local().Format(time.DateTime), humanize.Time(r.ReservedAt))

	if v.HasCountdown {
		fmt.Fprintf(w, "Time left    %s\n", hexColor(d.BannerColor).Sprint(v.Countdown))
	}
	if r.EnteredAt != nil {
		fmt.Fprintf(w, "Entered      %s\n", r.EnteredAt.Local().Format(time.DateTime))
	}
	if r.ExitedAt != nil {
		fmt.Fprintf(w, "Exited       %s\n", r.ExitedAt.Local().Format(time.DateTime))
	}

	switch {
	case d.Terminal:
		fmt.Fprintf(w, "Total        $%s\n", r.TotalCost.StringFixed(2))
	case r.EnteredAt != nil:
		hours, rate := freeHours, r.HourlyRate
		if r.FreeHours != nil {
			hours = *r.FreeHours
		}
		if rate.IsZero() {
			rate = fallbackRate
		}
		est := reservation.EstimateCost(*r.EnteredAt, now, hours, rate)
		fmt.Fprintf(w, "Estimated    $%s %s\n", est.StringFixed(2), colorMuted.Sprint("(final amount set at exit)"))
	}

	if d.Instructions != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, d.Instructions)
	}
	if len(d.AllowedActions) > 0 {
		names := make([]string, 0, len(d.AllowedActions))
		for _, a := range d.AllowedActions {
			names = append(names, string(a))
		}
		colorMuted.Fprintf(w, "Actions: %s\n", strings.Join(names, ", "))
	}
	if d.Unrecognized {
		colorError.Fprintf(w, "Unrecognized status %q, update the app.\n", r.Status)
	}
}
