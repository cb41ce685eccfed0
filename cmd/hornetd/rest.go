package main

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
)

// healthyMilestoneAge is how stale the latest milestone's arrival may be
// before a node otherwise reporting itself synced is still considered
// unhealthy -- a synced-but-stalled coordinator looks identical to a synced
// node from the tangle's own bookkeeping alone.
const healthyMilestoneAge = 5 * time.Hour

// restHandler implements the node's read/write HTTP surface. Routes are
// matched by hand rather than through http.ServeMux's pattern/method
// matching, since this module targets Go 1.19 (the same version the
// teacher's go.mod pins), which predates ServeMux wildcard segments.
type restHandler struct {
	app     *App
	metrics http.Handler
}

func newRESTHandler(app *App) http.Handler {
	registry := prometheus.NewRegistry()
	for _, c := range app.metricsReg.Collectors() {
		registry.MustRegister(c)
	}

	return &restHandler{
		app:     app,
		metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
}

func (h *restHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/health":
		h.health(w, r)
	case r.URL.Path == "/metrics":
		h.metrics.ServeHTTP(w, r)
	case r.URL.Path == "/api/v1/info":
		h.info(w, r)
	case r.URL.Path == "/api/v1/tips":
		h.tips(w, r)
	case r.URL.Path == "/api/v1/messages" && r.Method == http.MethodPost:
		h.submitMessage(w, r)
	case r.URL.Path == "/api/v1/messages" && r.Method == http.MethodGet:
		h.messagesByIndex(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/messages/"):
		h.messageSubroute(w, r, strings.TrimPrefix(r.URL.Path, "/api/v1/messages/"))
	case strings.HasPrefix(r.URL.Path, "/api/v1/milestones/"):
		h.milestoneByIndex(w, r, strings.TrimPrefix(r.URL.Path, "/api/v1/milestones/"))
	case strings.HasPrefix(r.URL.Path, "/api/v1/outputs/"):
		h.outputByID(w, r, strings.TrimPrefix(r.URL.Path, "/api/v1/outputs/"))
	default:
		http.NotFound(w, r)
	}
}

func (h *restHandler) health(w http.ResponseWriter, r *http.Request) {
	tng := h.app.tangle

	if !tng.IsSynced() {
		w.WriteHeader(http.StatusServiceUnavailable)

		return
	}

	latestID, ok := tng.GetMilestoneMessageId(tng.GetLatestMilestoneIndex())
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)

		return
	}

	meta, ok := tng.GetMetadata(latestID)
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)

		return
	}

	arrival := time.UnixMilli(meta.ArrivalTime())
	if time.Since(arrival) > healthyMilestoneAge {
		w.WriteHeader(http.StatusServiceUnavailable)

		return
	}

	w.WriteHeader(http.StatusOK)
}

type nodeInfo struct {
	IsSynced                  bool   `json:"isSynced"`
	LatestMilestoneIndex      uint32 `json:"latestMilestoneIndex"`
	LatestSolidMilestoneIndex uint32 `json:"latestSolidMilestoneIndex"`
	PruningIndex              uint32 `json:"pruningIndex"`
	ConnectedPeers            int    `json:"connectedPeers"`
	PendingMessageRequests    int    `json:"pendingMessageRequests"`
	PendingMilestoneRequests  int    `json:"pendingMilestoneRequests"`
}

func (h *restHandler) info(w http.ResponseWriter, r *http.Request) {
	tng := h.app.tangle

	writeJSON(w, http.StatusOK, nodeInfo{
		IsSynced:                  tng.IsSynced(),
		LatestMilestoneIndex:      uint32(tng.GetLatestMilestoneIndex()),
		LatestSolidMilestoneIndex: uint32(tng.GetLatestSolidMilestoneIndex()),
		PruningIndex:              uint32(tng.GetPruningIndex()),
		ConnectedPeers:            h.app.peers.Count(),
		PendingMessageRequests:    h.app.msgReq.Requested().Len(),
		PendingMilestoneRequests:  h.app.msReq.Requested().Len(),
	})
}

type tipsResponse struct {
	MessageIDs []string `json:"messageIds"`
}

func (h *restHandler) tips(w http.ResponseWriter, r *http.Request) {
	p1, p2, ok := h.app.tips.Select()
	if !ok {
		writeJSON(w, http.StatusOK, tipsResponse{MessageIDs: []string{}})

		return
	}

	ids := []string{p1.Hex()}
	if p2 != p1 {
		ids = append(ids, p2.Hex())
	}

	writeJSON(w, http.StatusOK, tipsResponse{MessageIDs: ids})
}

// submitMessage accepts an already-inflated, fixed-length transaction
// buffer and hands it to the hasher/processor pipeline for Stage 1 dedup
// onward, the same entry point a peer connection's Transaction frame
// feeds. Ingestion is asynchronous: a 202 means only that the buffer was
// queued, not that it was accepted as valid.
func (h *restHandler) submitMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)

		return
	}

	if len(body) == 0 {
		http.Error(w, "empty message body", http.StatusBadRequest)

		return
	}

	h.app.pipe.Submit("rest", body)

	w.WriteHeader(http.StatusAccepted)
}

// messagesByIndex resolves the ?index= query parameter against the
// milestone index space, the only notion of "index" this legacy-ledger
// module tracks, and returns the message id of the milestone at that
// index.
func (h *restHandler) messagesByIndex(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("index")
	if raw == "" {
		http.Error(w, "missing index query parameter", http.StatusBadRequest)

		return
	}

	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)

		return
	}

	messageID, ok := h.app.tangle.GetMilestoneMessageId(milestonepkg.Index(n))
	if !ok {
		http.NotFound(w, r)

		return
	}

	writeJSON(w, http.StatusOK, struct {
		MessageID string `json:"messageId"`
	}{MessageID: messageID.Hex()})
}

func (h *restHandler) messageSubroute(w http.ResponseWriter, r *http.Request, rest string) {
	idHex, suffix := splitFirstSegment(rest)

	messageID, err := parseMessageID(idHex)
	if err != nil {
		http.Error(w, "invalid message id", http.StatusBadRequest)

		return
	}

	switch suffix {
	case "":
		h.messageByID(w, r, messageID)
	case "metadata":
		h.messageMetadata(w, r, messageID)
	case "raw":
		h.messageRaw(w, r, messageID)
	case "children":
		h.messageChildren(w, r, messageID)
	default:
		http.NotFound(w, r)
	}
}

type messageResponse struct {
	MessageID   string `json:"messageId"`
	Parent1     string `json:"parent1MessageId"`
	Parent2     string `json:"parent2MessageId"`
	PayloadType uint8  `json:"payloadType"`
}

func (h *restHandler) messageByID(w http.ResponseWriter, r *http.Request, id hornet.MessageId) {
	vertex, ok := h.app.tangle.Get(id)
	if !ok {
		http.NotFound(w, r)

		return
	}

	payloadType := tangle.PayloadNone
	if vertex.Message.Payload != nil {
		payloadType = vertex.Message.Payload.PayloadType()
	}

	writeJSON(w, http.StatusOK, messageResponse{
		MessageID:   id.Hex(),
		Parent1:     vertex.Message.Parent1.Hex(),
		Parent2:     vertex.Message.Parent2.Hex(),
		PayloadType: uint8(payloadType),
	})
}

type metadataResponse struct {
	MessageID    string `json:"messageId"`
	Solid        bool   `json:"isSolid"`
	Milestone    bool   `json:"isMilestone"`
	Confirmed    bool   `json:"isConfirmed"`
	Conflicting  bool   `json:"isConflicting"`
	OTRSI        uint32 `json:"otrsi,omitempty"`
	YTRSI        uint32 `json:"ytrsi,omitempty"`
	ConeIndex    uint32 `json:"coneIndex,omitempty"`
}

func (h *restHandler) messageMetadata(w http.ResponseWriter, r *http.Request, id hornet.MessageId) {
	meta, ok := h.app.tangle.GetMetadata(id)
	if !ok {
		http.NotFound(w, r)

		return
	}

	resp := metadataResponse{
		MessageID:   id.Hex(),
		Solid:       meta.IsSolid(),
		Milestone:   meta.IsMilestone(),
		Confirmed:   meta.IsConfirmed(),
		Conflicting: meta.IsConflicting(),
	}

	if otrsi, ok := meta.OTRSI(); ok {
		resp.OTRSI = uint32(otrsi)
	}
	if ytrsi, ok := meta.YTRSI(); ok {
		resp.YTRSI = uint32(ytrsi)
	}
	if coneIndex, ok := meta.ConeIndex(); ok {
		resp.ConeIndex = uint32(coneIndex)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *restHandler) messageRaw(w http.ResponseWriter, r *http.Request, id hornet.MessageId) {
	vertex, ok := h.app.tangle.Get(id)
	if !ok {
		http.NotFound(w, r)

		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(vertex.Message.RawBytes)
}

func (h *restHandler) messageChildren(w http.ResponseWriter, r *http.Request, id hornet.MessageId) {
	if !h.app.tangle.Contains(id) {
		http.NotFound(w, r)

		return
	}

	children := h.app.tangle.GetChildren(id)
	ids := make([]string, 0, len(children))
	for _, child := range children {
		ids = append(ids, child.Hex())
	}

	writeJSON(w, http.StatusOK, struct {
		ChildrenMessageIDs []string `json:"childrenMessageIds"`
	}{ChildrenMessageIDs: ids})
}

type milestoneResponse struct {
	Index               uint32 `json:"index"`
	MessageID           string `json:"messageId"`
	Timestamp           uint32 `json:"timestamp"`
	InclusionMerkleRoot string `json:"inclusionMerkleRoot"`
	AppliedMerkleRoot    string `json:"appliedMerkleRoot"`
}

func (h *restHandler) milestoneByIndex(w http.ResponseWriter, r *http.Request, indexStr string) {
	n, err := strconv.ParseUint(indexStr, 10, 32)
	if err != nil {
		http.Error(w, "invalid milestone index", http.StatusBadRequest)

		return
	}

	index := milestonepkg.Index(n)

	messageID, ok := h.app.tangle.GetMilestoneMessageId(index)
	if !ok {
		http.NotFound(w, r)

		return
	}

	vertex, ok := h.app.tangle.Get(messageID)
	if !ok {
		http.NotFound(w, r)

		return
	}

	ms, ok := vertex.Message.Payload.(*tangle.MilestonePayload)
	if !ok {
		http.NotFound(w, r)

		return
	}

	writeJSON(w, http.StatusOK, milestoneResponse{
		Index:                uint32(ms.Milestone.Essence.Index),
		MessageID:            messageID.Hex(),
		Timestamp:            ms.Milestone.Essence.Timestamp,
		InclusionMerkleRoot:  hex.EncodeToString(ms.Milestone.Essence.InclusionMerkleRoot[:]),
		AppliedMerkleRoot:    hex.EncodeToString(ms.Milestone.Essence.AppliedMerkleRoot[:]),
	})
}

type outputResponse struct {
	MessageID string `json:"messageId"`
	Address   string `json:"address"`
	Value     int64  `json:"value"`
	Spent     bool   `json:"spent"`
	Confirmed bool   `json:"confirmed"`
}

// outputByID derives a legacy value-transfer view from the transaction
// payload of the message named by id: this module tracks the legacy
// address+value ledger rather than discrete UTXO objects, so an "output"
// here is simply the transaction that produced it, per the white-flag
// walker's own address-keyed conflict model in pkg/whiteflag.
func (h *restHandler) outputByID(w http.ResponseWriter, r *http.Request, idHex string) {
	id, err := parseMessageID(idHex)
	if err != nil {
		http.Error(w, "invalid output id", http.StatusBadRequest)

		return
	}

	vertex, ok := h.app.tangle.Get(id)
	if !ok {
		http.NotFound(w, r)

		return
	}

	tx, ok := vertex.Message.Payload.(*tangle.TransactionPayload)
	if !ok {
		http.NotFound(w, r)

		return
	}

	writeJSON(w, http.StatusOK, outputResponse{
		MessageID: id.Hex(),
		Address:   string(tx.Address),
		Value:     tx.Value,
		Spent:     vertex.Metadata.IsConflicting(),
		Confirmed: vertex.Metadata.IsConfirmed(),
	})
}

func parseMessageID(idHex string) (hornet.MessageId, error) {
	b, err := hex.DecodeString(idHex)
	if err != nil {
		return hornet.MessageId{}, err
	}

	return hornet.MessageIDFromBytes(b)
}

// splitFirstSegment splits "a/b/c" into ("a", "b/c") and "a" into ("a", "").
func splitFirstSegment(path string) (head, rest string) {
	idx := strings.IndexByte(path, '/')
	if idx < 0 {
		return path, ""
	}

	return path[:idx], path[idx+1:]
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
