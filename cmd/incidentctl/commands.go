package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/roadwatch/console/internal/analytics"
	"github.com/roadwatch/console/internal/domain"
	"github.com/roadwatch/console/internal/locator"
	"github.com/roadwatch/console/internal/service"
	"github.com/roadwatch/console/internal/spatial"
	"github.com/roadwatch/console/pkg/utils"
)

func addIncidentsCmd(root *cobra.Command) {
	var limit int
	cmd := &cobra.Command{
		Use:   "incidents",
		Short: "Summarize the latest incident reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := query()
			if err != nil {
				return err
			}
			records, err := reportClient().Incidents(cmd.Context(), q.IncidentType, limit)
			if err != nil {
				return err
			}

			projector := analytics.NewProjector(time.Local, cfg.DayNameLocale)
			idx := spatial.NewIncidentIndex(records)
			nearby, err := idx.WithinRadius(q.Latitude, q.Longitude, q.Radius)
			if err != nil {
				return err
			}

			var b strings.Builder
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Reports:"), countStyle.Render(fmt.Sprint(len(records))))
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Today:"), countStyle.Render(fmt.Sprint(len(projector.FromToday(records)))))
			fmt.Fprintf(&b, "%s %s", labelStyle.Render(fmt.Sprintf("Within %d m:", q.Radius)), countStyle.Render(fmt.Sprint(len(nearby))))
			cmd.Println(titleStyle.Render("Incidents"))
			cmd.Println(boxStyle.Render(b.String()))

			top := analytics.TopTypes(analytics.CountByType(records), 5)
			if len(top) == 0 {
				cmd.Println(dimStyle.Render("No reports found."))
				return nil
			}
			for _, tc := range top {
				cmd.Printf("  %-14s %s\n", tc.Type.Label(), countStyle.Render(fmt.Sprint(tc.Count)))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", service.IncidentLimit, "Maximum number of reports")
	root.AddCommand(cmd)
}

func addNearestCmd(root *cobra.Command) {
	var count int
	cmd := &cobra.Command{
		Use:   "nearest",
		Short: "List the reports closest to the query position",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := query()
			if err != nil {
				return err
			}
			records, err := reportClient().Incidents(cmd.Context(), q.IncidentType, service.IncidentLimit)
			if err != nil {
				return err
			}

			cmd.Println(titleStyle.Render(fmt.Sprintf("Nearest %d reports", count)))
			for _, r := range spatial.NewIncidentIndex(records).Nearest(q.Latitude, q.Longitude, count) {
				lat, lon, _ := r.LatLon()
				km := utils.DistanceKm(q.Latitude, q.Longitude, lat, lon)
				cmd.Printf("  %-14s %8.2f km  %s\n", r.Type.Label(), km, dimStyle.Render(formatTime(r.CreatedAt)))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "k", 10, "Number of reports")
	root.AddCommand(cmd)
}

func addPeaksCmd(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "peaks",
		Short: "Show the peak hours and days around the query position",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := query()
			if err != nil {
				return err
			}
			resp, err := reportClient().PeakTimes(cmd.Context(), q)
			if err != nil {
				return err
			}

			projector := analytics.NewProjector(time.Local, cfg.DayNameLocale)
			typ, hours := analytics.ServerPeakHours(resp, q.IncidentType)
			_, days := analytics.ServerPeakDays(resp, domain.IncidentType(typ))

			cmd.Println(titleStyle.Render("Peak times " + domain.IncidentType(typ).Label()))
			for _, h := range analytics.TopPeakHours(hours, 3) {
				cmd.Printf("  %02d:00  %s %s\n", h.Hour, countStyle.Render(fmt.Sprint(h.Count)), dimStyle.Render(fmt.Sprintf("(%.1f%%)", h.Percentage)))
			}
			for _, d := range days {
				cmd.Printf("  %-10s %s\n", projector.DayName(d.Day), countStyle.Render(fmt.Sprint(d.Count)))
			}
			if resp.Metadata.DataPeriod != "" {
				cmd.Println(dimStyle.Render("Period: " + resp.Metadata.DataPeriod))
			}
			return nil
		},
	}
	root.AddCommand(cmd)
}

func addPredictCmd(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict incidents around the query position for now",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := query()
			if err != nil {
				return err
			}
			resp, err := reportClient().Predictions(cmd.Context(), q, time.Now())
			if err != nil {
				return err
			}

			cmd.Println(titleStyle.Render("Predictions"))
			for _, row := range analytics.PredictionSeries(resp) {
				cmd.Printf("  %-14s %6.2f%%  %s\n", domain.IncidentType(row.Type).Label(), row.Probability,
					dimStyle.Render(fmt.Sprintf("confidence %.2f%%, %d samples", row.Confidence, row.SampleSize)))
			}
			cmd.Println(dimStyle.Render(fmt.Sprintf("%d reports over %d days",
				resp.Metadata.TotalHistoricalReports, resp.Metadata.DataPeriodDays)))
			return nil
		},
	}
	root.AddCommand(cmd)
}

func addGeocodeCmd(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "geocode [address]",
		Short: "Resolve an address, or the device position when none is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			var loc locator.DeviceLocator
			if cfg.HasDevice {
				loc = locator.StaticLocator{Latitude: cfg.DeviceLatitude, Longitude: cfg.DeviceLongitude}
			}
			geo := service.NewGeoResolver(loc, cfg.GeocoderURL, cfg.UserAgent, nil)

			if len(args) == 0 {
				res := geo.DetectDevice(cmd.Context())
				if res.Status != service.LocationOK {
					return fmt.Errorf("%s", res.Message)
				}
				cmd.Printf("%s %.6f, %.6f\n", labelStyle.Render(res.Message+":"), res.Latitude, res.Longitude)
				return nil
			}

			res := geo.ResolveAddress(cmd.Context(), strings.Join(args, " "))
			if res.Status != service.AddressFound {
				return fmt.Errorf("%s", res.Message)
			}
			cmd.Println(labelStyle.Render(res.Message))
			cmd.Printf("  %.6f, %.6f\n", res.Latitude, res.Longitude)
			return nil
		},
	}
	root.AddCommand(cmd)
}

func addExportCmd(root *cobra.Command) {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the incident reports as a GeoJSON feature collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := query()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
			defer cancel()
			records, err := reportClient().Incidents(ctx, q.IncidentType, service.IncidentLimit)
			if err != nil {
				return err
			}

			fc := incidentFeatures(records)
			data, err := json.MarshalIndent(fc, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode features: %w", err)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			cmd.Printf("%d of %d reports saved to %s\n", len(fc.Features), len(records), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "incidents.geojson", "Output GeoJSON file path")
	root.AddCommand(cmd)
}

// incidentFeatures converts the records with a valid position
func incidentFeatures(records []domain.IncidentRecord) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range records {
		lat, lon, ok := r.LatLon()
		if !ok {
			continue
		}
		f := geojson.NewFeature(orb.Point{lon, lat})
		f.ID = r.ID
		f.Properties["type"] = string(r.Type)
		f.Properties["count"] = r.Occurrences()
		f.Properties["upvotes"] = r.Upvotes
		if !r.CreatedAt.IsZero() {
			f.Properties["created_at"] = r.CreatedAt.Format(time.RFC3339)
		}
		fc.Append(f)
	}
	return fc
}
