package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/roadwatch/console/internal/analytics"
	"github.com/roadwatch/console/internal/domain"
	"github.com/roadwatch/console/internal/service"
	"github.com/roadwatch/console/internal/spatial"
)

type incidentsMsg struct {
	records []domain.IncidentRecord
	err     error
	at      time.Time
}

type refreshMsg struct{}

type watchModel struct {
	fetch     func() tea.Msg
	interval  time.Duration
	query     domain.LocationQuery
	projector analytics.Projector

	spinner  spinner.Model
	fetching bool
	records  []domain.IncidentRecord
	nearby   int
	err      error
	updated  time.Time
}

func newWatchModel(q domain.LocationQuery, interval time.Duration, fetch func() tea.Msg) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return watchModel{
		fetch:     fetch,
		interval:  interval,
		query:     q,
		projector: analytics.NewProjector(time.Local, cfg.DayNameLocale),
		spinner:   s,
		fetching:  true,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			if !m.fetching {
				m.fetching = true
				return m, m.fetch
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case incidentsMsg:
		m.fetching = false
		m.err = msg.err
		if msg.err == nil {
			m.records = msg.records
			m.updated = msg.at
			within, err := spatial.NewIncidentIndex(msg.records).WithinRadius(m.query.Latitude, m.query.Longitude, m.query.Radius)
			if err == nil {
				m.nearby = len(within)
			}
		}
		return m, tea.Tick(m.interval, func(time.Time) tea.Msg { return refreshMsg{} })

	case refreshMsg:
		if m.fetching {
			return m, nil
		}
		m.fetching = true
		return m, m.fetch
	}

	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Incidents"))
	b.WriteString("\n")
	if m.fetching {
		b.WriteString(m.spinner.View() + " Loading incidents...\n\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(domain.UserMessage(m.err, "Failed to fetch incidents")))
		b.WriteString("\n\n")
	}

	if !m.updated.IsZero() {
		var stats strings.Builder
		fmt.Fprintf(&stats, "%s %s\n", labelStyle.Render("Reports:"), countStyle.Render(fmt.Sprint(len(m.records))))
		fmt.Fprintf(&stats, "%s %s\n", labelStyle.Render("Today:"), countStyle.Render(fmt.Sprint(len(m.projector.FromToday(m.records)))))
		fmt.Fprintf(&stats, "%s %s", labelStyle.Render(fmt.Sprintf("Within %d m:", m.query.Radius)), countStyle.Render(fmt.Sprint(m.nearby)))
		b.WriteString(boxStyle.Render(stats.String()))
		b.WriteString("\n")
		for _, tc := range analytics.TopTypes(analytics.CountByType(m.records), 5) {
			fmt.Fprintf(&b, "  %-14s %s\n", tc.Type.Label(), countStyle.Render(fmt.Sprint(tc.Count)))
		}
		b.WriteString(dimStyle.Render("Updated " + formatTime(m.updated)))
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render("r refresh, q quit"))
	b.WriteString("\n")
	return b.String()
}

func addWatchCmd(root *cobra.Command) {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the incident reports in a live terminal view",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := query()
			if err != nil {
				return err
			}
			if interval < 10*time.Second {
				interval = 10 * time.Second
			}

			client := reportClient()
			ctx := cmd.Context()
			fetch := func() tea.Msg {
				fetchCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
				defer cancel()
				records, err := client.Incidents(fetchCtx, q.IncidentType, service.IncidentLimit)
				return incidentsMsg{records: records, err: err, at: time.Now()}
			}

			_, err = tea.NewProgram(newWatchModel(q, interval, fetch)).Run()
			return err
		},
	}
	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Minute, "Refresh interval (minimum 10s)")
	root.AddCommand(cmd)
}
