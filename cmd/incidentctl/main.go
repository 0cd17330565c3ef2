package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/roadwatch/console/internal/config"
	"github.com/roadwatch/console/internal/domain"
	"github.com/roadwatch/console/internal/service"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8BE9FD"))

	countStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(0, 1)
)

var (
	cfg *config.Config

	apiURL    string
	token     string
	latitude  float64
	longitude float64
	radius    int
	incType   string
)

func main() {
	cfg = config.Load()

	rootCmd := &cobra.Command{
		Use:   "incidentctl",
		Short: "Query the road incident report API from the terminal",
		Long: `incidentctl fetches incident reports, predictions and peak times
from the report API and prints the same aggregates as the console.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api", cfg.ReportAPIURL, "Report API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", cfg.ReportAPIToken, "Bearer token of the session")
	rootCmd.PersistentFlags().Float64Var(&latitude, "lat", cfg.DefaultLatitude, "Query latitude")
	rootCmd.PersistentFlags().Float64Var(&longitude, "lon", cfg.DefaultLongitude, "Query longitude")
	rootCmd.PersistentFlags().IntVarP(&radius, "radius", "r", domain.DefaultRadius, "Query radius in meters")
	rootCmd.PersistentFlags().StringVarP(&incType, "type", "t", "", "Incident type filter")

	addIncidentsCmd(rootCmd)
	addNearestCmd(rootCmd)
	addPeaksCmd(rootCmd)
	addPredictCmd(rootCmd)
	addGeocodeCmd(rootCmd)
	addExportCmd(rootCmd)
	addWatchCmd(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(domain.UserMessage(err, err.Error())))
		os.Exit(1)
	}
}

func reportClient() *service.ReportClient {
	return service.NewReportClient(apiURL, service.StaticToken(token), cfg.RequestTimeout)
}

// query builds the location query from the flags
func query() (domain.LocationQuery, error) {
	q := domain.LocationQuery{
		Latitude:     latitude,
		Longitude:    longitude,
		Radius:       radius,
		IncidentType: domain.IncidentType(incType),
	}
	if err := q.Validate(); err != nil {
		return q, err
	}
	return q, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
