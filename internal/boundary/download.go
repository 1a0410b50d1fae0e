package boundary

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/choroshape/internal/fetcher"
)

// CountyURL returns the Census county boundary archive for a vintage.
// resolution is a cartographic generalization (500k, 5m, 20m) or "tiger"
// for full-detail TIGER/Line.
func CountyURL(year int, resolution string) (string, error) {
	switch strings.ToLower(resolution) {
	case "tiger", "full":
		return fmt.Sprintf("https://www2.census.gov/geo/tiger/TIGER%d/COUNTY/tl_%d_us_county.zip", year, year), nil
	case "", "500k":
		return fmt.Sprintf("https://www2.census.gov/geo/tiger/GENZ%d/shp/cb_%d_us_county_500k.zip", year, year), nil
	case "5m", "20m":
		r := strings.ToLower(resolution)
		return fmt.Sprintf("https://www2.census.gov/geo/tiger/GENZ%d/shp/cb_%d_us_county_%s.zip", year, year, r), nil
	default:
		return "", eris.Errorf("boundary: unknown resolution %q (want 500k, 5m, 20m or tiger)", resolution)
	}
}

// Download fetches a boundary ZIP into destDir, extracts it and returns the
// path of the .shp file. An existing non-empty ZIP is reused.
func Download(ctx context.Context, f fetcher.Fetcher, url, destDir string) (string, error) {
	log := zap.L().With(
		zap.String("component", "boundary.download"),
		zap.String("url", url),
	)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "boundary: create dest dir")
	}

	zipName := filepath.Base(strings.SplitN(url, "?", 2)[0])
	zipPath := filepath.Join(destDir, zipName)

	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("zip already exists, skipping download", zap.String("path", zipPath))
	} else {
		log.Info("downloading county boundaries")
		if _, err := f.DownloadToFile(ctx, url, zipPath); err != nil {
			return "", eris.Wrap(err, "boundary: download")
		}
	}

	extractDir := filepath.Join(destDir, strings.TrimSuffix(zipName, filepath.Ext(zipName)))
	paths, err := fetcher.ExtractZIP(zipPath, extractDir)
	if err != nil {
		return "", eris.Wrap(err, "boundary: extract")
	}

	shpPath, err := fetcher.FindByExt(paths, ".shp")
	if err != nil {
		return "", eris.Wrap(err, "boundary: find .shp file")
	}
	return shpPath, nil
}
