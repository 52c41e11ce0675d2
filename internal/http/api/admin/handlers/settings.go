package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	internalsettings "github.com/djorigin/rpasops/internal/settings"
)

// SettingsHandler manages DB-backed runtime settings.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler constructs a settings handler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// settingKeys are the keys exposed through the API.
var settingKeys = []string{
	internalsettings.SiteNameKey,
	internalsettings.ComplianceRunIntervalSecondsKey,
	internalsettings.ComplianceMaxConcurrencyKey,
	internalsettings.MaintenanceScanIntervalSecondsKey,
}

// Get returns the current settings snapshot.
func (h *SettingsHandler) Get(c *gin.Context) {
	values := gin.H{}
	for _, key := range settingKeys {
		if raw, ok := internalsettings.DBConfigValue(key); ok {
			values[key] = raw
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"settings":   values,
		"updated_at": internalsettings.DBConfigUpdatedAt(),
	})
}

// Put writes one setting and refreshes the snapshot.
func (h *SettingsHandler) Put(c *gin.Context) {
	var payload struct {
		Key   string `json:"key" binding:"required"`
		Value any    `json:"value" binding:"required"`
	}
	if errBind := c.ShouldBindJSON(&payload); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
		return
	}

	key := strings.TrimSpace(payload.Key)
	known := false
	for _, candidate := range settingKeys {
		if candidate == key {
			known = true
			break
		}
	}
	if !known {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown setting key"})
		return
	}

	if errUpsert := internalsettings.UpsertSetting(c.Request.Context(), h.db, key, payload.Value); errUpsert != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store setting failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "stored": true})
}
