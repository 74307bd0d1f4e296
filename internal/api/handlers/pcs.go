package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"energy-net/internal/api/models"
	"energy-net/internal/config"
	"energy-net/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PCSHandler lists the PCS presets a request can reference by pcs_file
type PCSHandler struct {
	presetDir string
	log       logrus.FieldLogger
}

func NewPCSHandler(presetDir string, log logrus.FieldLogger) *PCSHandler {
	// Convert to absolute path for reliability
	if abs, err := filepath.Abs(presetDir); err == nil {
		presetDir = abs
	}
	return &PCSHandler{presetDir: presetDir, log: logging.OrDiscard(log)}
}

// ListPresets handles GET /api/v1/pcs
func (h *PCSHandler) ListPresets(c *gin.Context) {
	presets := []models.PCSPresetInfo{}

	entries, err := os.ReadDir(h.presetDir)
	if err != nil {
		h.log.WithError(err).WithField("dir", h.presetDir).Warn("failed to read preset directory")
		c.JSON(http.StatusOK, gin.H{"presets": presets})
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(h.presetDir, entry.Name())
		info, err := loadPresetInfo(path, entry.Name())
		if err != nil {
			h.log.WithError(err).WithField("file", path).Warn("skipping invalid preset")
			continue
		}
		presets = append(presets, *info)
	}

	c.JSON(http.StatusOK, gin.H{"presets": presets})
}

func loadPresetInfo(path, filename string) (*models.PCSPresetInfo, error) {
	p, err := config.LoadPCSFile(path)
	if err != nil {
		return nil, err
	}
	units := len(p.Units)
	if units == 0 {
		units = 1
	}
	return &models.PCSPresetInfo{
		// "default.yaml" -> "default"
		ID:    strings.TrimSuffix(filename, ".yaml"),
		File:  path,
		Units: units,
		Specs: models.BatterySpecs{
			Capacity:         p.Battery.Max - p.Battery.Min,
			ChargeRateMax:    p.Battery.ChargeRateMax,
			DischargeRateMax: p.Battery.DischargeRateMax,
		},
	}, nil
}
