package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"dag-ledger/dag"
	"dag-ledger/logger"
	"dag-ledger/models"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Handler contains the HTTP handlers for the DAG API endpoints
type Handler struct {
	DAG *dag.DAG
}

// NewHandler creates and returns a new Handler instance
func NewHandler(d *dag.DAG) *Handler {
	return &Handler{DAG: d}
}

type payloadRequest struct {
	Contents []byte `json:"contents"`
}

type submitResponse struct {
	Message string      `json:"message"`
	Hash    models.Hash `json:"hash"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func hashVar(r *http.Request) (models.Hash, error) {
	return models.HashFromHex(mux.Vars(r)["hash"])
}

// AddTransaction handles POST requests carrying a DATA payload
func (h *Handler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	var req payloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode transaction", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	hash, ok := h.DAG.AddTransaction(req.Contents, models.NodeData)
	if !ok {
		writeError(w, http.StatusConflict, "transaction rejected")
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{Message: "Transaction added successfully", Hash: hash})
}

// AddArbitrary handles POST requests carrying an ARBITRARY payload
func (h *Handler) AddArbitrary(w http.ResponseWriter, r *http.Request) {
	var req payloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode payload", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	hash, ok := h.DAG.AddArbitrary(req.Contents)
	if !ok {
		writeError(w, http.StatusConflict, "payload rejected")
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{Message: "Payload added successfully", Hash: hash})
}

type workRequest struct {
	ContractDigest models.Hash `json:"contract_digest"`
	BlockNumber    uint64      `json:"block_number"`
	Nonce          uint64      `json:"nonce"`
	Score          int64       `json:"score"`
}

// AddWork handles POST requests submitting a work solution
func (h *Handler) AddWork(w http.ResponseWriter, r *http.Request) {
	var req workRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode work", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	hash, ok := h.DAG.AddWork(models.Work{
		ContractDigest: req.ContractDigest,
		BlockNumber:    req.BlockNumber,
		Nonce:          req.Nonce,
		Score:          req.Score,
	})
	if !ok {
		writeError(w, http.StatusConflict, "work rejected")
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{Message: "Work added successfully", Hash: hash})
}

// AddDAGNode admits a node relayed verbatim by a peer
func (h *Handler) AddDAGNode(w http.ResponseWriter, r *http.Request) {
	var node models.DAGNode
	if err := json.NewDecoder(r.Body).Decode(&node); err != nil {
		logger.Logger.Error("Failed to decode node", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if !h.DAG.AddDAGNode(node) {
		writeError(w, http.StatusConflict, "node rejected")
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{Message: "Node added successfully", Hash: node.Hash})
}

// GetDAGNode looks a node up by hash in the pool, the loose set and storage
func (h *Handler) GetDAGNode(w http.ResponseWriter, r *http.Request) {
	hash, err := hashVar(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	node, found := h.DAG.GetDAGNode(hash)
	if !found {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (h *Handler) GetWork(w http.ResponseWriter, r *http.Request) {
	hash, err := hashVar(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	work, err := h.DAG.GetWork(hash)
	switch {
	case errors.Is(err, dag.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"contract_digest": work.ContractDigest,
		"miner":           work.Miner,
		"block_number":    work.BlockNumber,
		"nonce":           work.Nonce,
		"score":           work.Score,
	})
}

// GetStatus reports the current epoch and pool sizes
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.DAG.Stats())
}

func (h *Handler) HasEpoch(w http.ResponseWriter, r *http.Request) {
	hash, err := hashVar(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.DAG.HasEpoch(hash) {
		writeError(w, http.StatusNotFound, "epoch not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"hash": hash, "known": true})
}

// CommitEpoch checks an epoch proposed by a peer and adopts it when all of its nodes are available
func (h *Handler) CommitEpoch(w http.ResponseWriter, r *http.Request) {
	var epoch models.DAGEpoch
	if err := json.NewDecoder(r.Body).Decode(&epoch); err != nil {
		logger.Logger.Error("Failed to decode epoch", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if !h.DAG.SatisfyEpoch(epoch) {
		writeError(w, http.StatusConflict, "epoch not valid")
		return
	}
	if !h.DAG.CommitEpoch(epoch) {
		writeError(w, http.StatusConflict, "epoch not committed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Epoch committed",
		"current_epoch": h.DAG.CurrentEpoch(),
		"missing":       h.DAG.GetRecentlyMissing(),
	})
}

// RevertToEpoch rolls the epoch sequence back to the block number in the path
func (h *Handler) RevertToEpoch(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(mux.Vars(r)["number"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid block number")
		return
	}
	if !h.DAG.RevertToEpoch(n) {
		writeError(w, http.StatusConflict, "revert failed")
		return
	}
	logger.Logger.Info("Reverted DAG over HTTP", zap.Uint64("block_number", n))
	writeJSON(w, http.StatusOK, map[string]uint64{"current_epoch": h.DAG.CurrentEpoch()})
}

// GetRecentlyAdded drains the outbox of recently admitted nodes
func (h *Handler) GetRecentlyAdded(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.DAG.GetRecentlyAdded())
}

func (h *Handler) GetRecentlyMissing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.DAG.GetRecentlyMissing())
}

func (h *Handler) GetLatest(w http.ResponseWriter, r *http.Request) {
	previousEpochOnly := r.URL.Query().Get("previous_epoch_only") != "false"
	writeJSON(w, http.StatusOK, h.DAG.GetLatest(previousEpochOnly))
}

func (h *Handler) GetTips(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.DAG.Tips())
}

// GetGraph renders the live pool in graphviz DOT format
func (h *Handler) GetGraph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	if err := h.DAG.WriteDOT(w); err != nil {
		logger.Logger.Error("Failed to render DAG graph", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
