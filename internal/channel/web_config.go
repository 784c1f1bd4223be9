package channel

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/chenjy16/webtools-sub001/internal/config"
)

// Settings API. Edits apply to the live config in memory; POST
// /api/config/save writes them to disk.

// handleGetConfig serves the masked config, or one value of it when
// ?path= names a dotted key.
func (w *Web) handleGetConfig(rw http.ResponseWriter, r *http.Request) {
	w.cfgMu.RLock()
	defer w.cfgMu.RUnlock()
	if w.cfg == nil {
		writeError(rw, http.StatusServiceUnavailable, "config not loaded")
		return
	}

	masked := config.Sanitize(w.cfg)
	key := r.URL.Query().Get("path")
	if key == "" {
		writeJSON(rw, http.StatusOK, masked)
		return
	}
	v, err := config.GetByPath(masked, key)
	if err != nil {
		writeError(rw, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"path": key, "value": v})
}

// handleUpdateConfig accepts either {"path": "...", "value": ...} to change
// one key or a whole config document. Nothing is applied unless the result
// validates.
func (w *Web) handleUpdateConfig(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(rw, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	w.cfgMu.Lock()
	defer w.cfgMu.Unlock()
	if w.cfg == nil {
		writeError(rw, http.StatusServiceUnavailable, "config not loaded")
		return
	}

	next, key, err := proposedConfig(w.cfg, body)
	if err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	if err := config.Validate(next); err != nil {
		writeError(rw, http.StatusBadRequest, "validation: "+err.Error())
		return
	}
	*w.cfg = *next

	resp := map[string]string{"status": "updated"}
	if key != "" {
		resp["path"] = key
	}
	w.logger.Info("config changed via web", "path", key)
	writeJSON(rw, http.StatusOK, resp)
}

// proposedConfig builds the config body asks for without touching cur. The
// returned key is empty for whole-document replacements.
func proposedConfig(cur *config.Config, body []byte) (*config.Config, string, error) {
	var patch struct {
		Path  string `json:"path"`
		Value any    `json:"value"`
	}
	if json.Unmarshal(body, &patch) == nil && patch.Path != "" {
		next, err := config.Clone(cur)
		if err != nil {
			return nil, "", err
		}
		if err := config.SetByPath(next, patch.Path, patch.Value); err != nil {
			return nil, "", err
		}
		return next, patch.Path, nil
	}

	// Sections missing from a full document keep their defaults.
	next := config.Defaults()
	if err := json.Unmarshal(body, next); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return next, "", nil
}

// handleSaveConfig writes the live config to the file it was loaded from.
func (w *Web) handleSaveConfig(rw http.ResponseWriter, r *http.Request) {
	w.cfgMu.RLock()
	defer w.cfgMu.RUnlock()
	if w.cfg == nil || w.cfgPath == "" {
		writeError(rw, http.StatusServiceUnavailable, "config not available")
		return
	}
	if err := config.Save(w.cfgPath, w.cfg); err != nil {
		writeError(rw, http.StatusInternalServerError, "save failed: "+err.Error())
		return
	}
	w.logger.Info("config saved", "path", w.cfgPath)
	writeJSON(rw, http.StatusOK, map[string]string{"status": "saved", "path": w.cfgPath})
}
