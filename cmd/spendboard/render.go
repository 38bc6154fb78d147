package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/janekbaraniewski/spendboard/internal/core"
	"github.com/janekbaraniewski/spendboard/internal/parsers"
)

// Catppuccin Mocha, the dashboard's palette.
var (
	colorText    = lipgloss.Color("#CDD6F4")
	colorSubtext = lipgloss.Color("#A6ADC8")
	colorBlue    = lipgloss.Color("#89B4FA")
	colorGreen   = lipgloss.Color("#A6E3A1")
	colorYellow  = lipgloss.Color("#F9E2AF")
	colorRed     = lipgloss.Color("#F38BA8")
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	nameStyle   = lipgloss.NewStyle().Foreground(colorText).Bold(true).Width(20)
	vendorStyle = lipgloss.NewStyle().Foreground(colorSubtext).Width(10)
	amountStyle = lipgloss.NewStyle().Foreground(colorGreen).Width(12)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorSubtext)
	warnStyle   = lipgloss.NewStyle().Foreground(colorYellow)
	errorStyle  = lipgloss.NewStyle().Foreground(colorRed)
	okStyle     = lipgloss.NewStyle().Foreground(colorGreen)
)

func formatUSD(v *float64) string {
	if v == nil {
		return "-"
	}
	if *v >= 1000 {
		return fmt.Sprintf("$%.0f", *v)
	}
	return fmt.Sprintf("$%.2f", *v)
}

func formatUpdated(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func renderAccounts(list []core.Account, rng core.UsageRange) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Accounts · spend range: %s", rng.Label())))
	b.WriteString("\n")
	if len(list) == 0 {
		b.WriteString(mutedStyle.Render("No accounts yet. Add one with `spendboard accounts add`."))
		b.WriteString("\n")
		return b.String()
	}
	for _, acct := range list {
		b.WriteString(renderAccountLine(acct))
		b.WriteString("\n")
	}
	return b.String()
}

// renderAccountLine prints one account: used spend for OpenAI, remaining
// credit for the prepaid vendors.
func renderAccountLine(acct core.Account) string {
	label, value := "available", (*float64)(nil)
	if acct.Balance != nil {
		value = acct.Balance.Available
		if acct.Vendor == core.VendorOpenAI {
			label, value = "used", acct.Balance.Used
		}
	} else if acct.Vendor == core.VendorOpenAI {
		label = "used"
	}

	amount := formatUSD(value)
	if acct.Balance != nil && acct.Balance.Partial {
		amount += "*"
	}

	parts := []string{
		nameStyle.Render(acct.Name),
		vendorStyle.Render(string(acct.Vendor)),
		amountStyle.Render(amount),
		mutedStyle.Render(label + " · " + parsers.MaskKey(acct.Credential) + " · " + formatUpdated(acct.LastUpdated)),
	}
	line := strings.Join(parts, " ")
	if acct.Error != "" {
		line += "\n  " + errorStyle.Render(acct.Error)
	}
	return mutedStyle.Render(acct.ID[:min(8, len(acct.ID))]) + " " + line
}
