package controller

import (
	"context"
	"net/http"
	"strconv"
)

// Mode switches the context between a historic block and the live head.
type Mode interface {
	ShowHistoric(height uint64)
	ShowLatest(ctx context.Context) error
}

type ModeController struct {
	mode Mode
}

func NewModeController(mode Mode) *ModeController {
	return &ModeController{
		mode: mode,
	}
}

/*
This handler pins the context to the block given by the block parameter
*/
func (m *ModeController) ShowHistoric(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST is allowed", http.StatusMethodNotAllowed)
		return
	}
	value := r.URL.Query().Get("block")
	if value == "" {
		http.Error(w, "Block query parameter is a must and it must be in this format: block=$val", http.StatusBadRequest)
		return
	}
	block, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		http.Error(w, "Block must be a non-negative integer", http.StatusBadRequest)
		return
	}
	m.mode.ShowHistoric(block)
	w.WriteHeader(http.StatusAccepted)
}

/*
This handler makes the context follow the latest block again
*/
func (m *ModeController) ShowLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST is allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := m.mode.ShowLatest(r.Context()); err != nil {
		handleInternalServerError(err, w)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
