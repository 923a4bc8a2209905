package controller

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	jsoniter "github.com/json-iterator/go"

	"go-validator-pool-sync/logger"
	"go-validator-pool-sync/model"
	"go-validator-pool-sync/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ContextReader exposes the committed context. It is implemented by
// *service.ContextStore.
type ContextReader interface {
	View() service.View
	Snapshot() *model.GlobalContext
}

type ContextController struct {
	store ContextReader
}

func NewContextController(store ContextReader) *ContextController {
	return &ContextController{
		store: store,
	}
}

/*
This handler returns the last committed context together with the
synchronization status as a json output
*/
func (c *ContextController) GetContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Only GET is allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, c.store.View())
}

/*
This handler returns the tracked pools. An optional address parameter selects
the pool with that staking or mining address
*/
func (c *ContextController) GetPools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Only GET is allowed", http.StatusMethodNotAllowed)
		return
	}
	queryParams := r.URL.Query()
	if len(queryParams) > 1 {
		http.Error(w, "Pass only one attribute for filtering", http.StatusBadRequest)
		return
	}
	if len(queryParams) == 1 && queryParams.Get("address") == "" {
		http.Error(w, "Filtering is only supported by address", http.StatusBadRequest)
		return
	}

	pools := c.store.Snapshot().Pools
	address := queryParams.Get("address")
	if address == "" {
		writeJSON(w, pools)
		return
	}
	if common.IsHexAddress(address) {
		address = common.HexToAddress(address).Hex()
	}
	data := []*model.Pool{}
	for _, p := range pools {
		if p.StakingAddress == address || p.MiningAddress == address {
			data = append(data, p)
		}
	}
	if len(data) == 0 {
		http.Error(w, "Pool not found", http.StatusNotFound)
		return
	}
	writeJSON(w, data)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		handleInternalServerError(err, w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(body); err != nil {
		logger.LogError(err)
	}
}

func handleInternalServerError(err error, w http.ResponseWriter) {
	if err != nil {
		logger.LogError(err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
