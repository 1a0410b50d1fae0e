package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/choroshape/internal/boundary"
	"github.com/sells-group/choroshape/internal/db"
	"github.com/sells-group/choroshape/internal/fips"
)

var boundariesCmd = &cobra.Command{
	Use:   "boundaries",
	Short: "Download county boundaries and load them into PostGIS",
}

var boundariesDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download and extract the Census county boundary shapefile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := downloadBoundaries(cmd)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, path)
		return nil
	},
}

var boundariesLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load county boundaries into PostGIS",
	Long: `Reads --shapefile (or downloads the Census county file) and upserts the counties
into boundary.table keyed by GEOID, creating the schema and table if needed.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("postgis"); err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("shapefile")
		if path == "" {
			var err error
			if path, err = downloadBoundaries(cmd); err != nil {
				return err
			}
		}
		state, _ := cmd.Flags().GetString("state")
		stateFIPS := ""
		if state != "" {
			code, ok := fips.StateFIPS(state)
			if !ok {
				return eris.Errorf("boundaries: unknown state %q", state)
			}
			stateFIPS = code
		}

		src := &boundary.ShapefileSource{Path: path, Opts: boundary.ReadOptions{
			FIPSColumn:  cfg.Boundary.FIPSColumn,
			StateColumn: cfg.Boundary.StateColumn,
			NameColumn:  cfg.Boundary.NameColumn,
			Encoding:    cfg.Boundary.Encoding,
		}}
		features, err := src.Counties(ctx, stateFIPS)
		if err != nil {
			return err
		}

		pool, err := db.Connect(ctx, cfg.Boundary.DatabaseURL, 4)
		if err != nil {
			return err
		}
		defer pool.Close()

		pg := boundary.NewPostGISSource(pool, cfg.Boundary.Table)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		n, err := pg.Load(ctx, features)
		if err != nil {
			return err
		}
		zap.L().Info("boundaries loaded", zap.String("shapefile", path), zap.Int64("counties", n))
		fmt.Fprintf(os.Stdout, "Loaded %d counties into %s\n", n, cfg.Boundary.Table)
		return nil
	},
}

func downloadBoundaries(cmd *cobra.Command) (string, error) {
	year, _ := cmd.Flags().GetInt("year")
	resolution, _ := cmd.Flags().GetString("resolution")
	dir, _ := cmd.Flags().GetString("dir")
	if year == 0 {
		year = cfg.Boundary.Year
	}
	if resolution == "" {
		resolution = cfg.Boundary.Resolution
	}
	if dir == "" {
		dir = cfg.Boundary.TempDir
	}
	url, err := boundary.CountyURL(year, resolution)
	if err != nil {
		return "", err
	}
	return boundary.Download(cmd.Context(), initFetcher(), url, dir)
}

func init() {
	for _, c := range []*cobra.Command{boundariesDownloadCmd, boundariesLoadCmd} {
		c.Flags().Int("year", 0, "boundary vintage (default from config)")
		c.Flags().String("resolution", "", "500k, 5m, 20m or tiger (default from config)")
		c.Flags().String("dir", "", "download directory (default boundary.temp_dir)")
	}
	boundariesLoadCmd.Flags().String("shapefile", "", "local county shapefile instead of downloading")
	boundariesLoadCmd.Flags().String("state", "", "load only this state")

	boundariesCmd.AddCommand(boundariesDownloadCmd)
	boundariesCmd.AddCommand(boundariesLoadCmd)
	rootCmd.AddCommand(boundariesCmd)
}
