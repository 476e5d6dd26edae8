package soap

import (
	"errors"
	"net/http"

	"github.com/wsusd/wsusd/internal/catalog"
	"github.com/wsusd/wsusd/internal/extendedinfo"
	"github.com/wsusd/wsusd/internal/offering"
)

// ClientHandler mounts the ClientWebService SOAP operations (spec.md
// §4.4, §4.6) on a single endpoint, dispatching by which element is
// present in the request's SOAP body.
type ClientHandler struct {
	engine   *offering.Engine
	extended *extendedinfo.Responder
}

func NewClientHandler(engine *offering.Engine, extended *extendedinfo.Responder) *ClientHandler {
	return &ClientHandler{engine: engine, extended: extended}
}

func (h *ClientHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	inner, err := decodeBody(r.Body)
	if err != nil {
		writeFault(w, http.StatusBadRequest, "soap:Client", err.Error())
		return
	}

	body, err := parseClientBody(inner)
	if err != nil {
		writeFault(w, http.StatusBadRequest, "soap:Client", "malformed request body: "+err.Error())
		return
	}

	switch {
	case body.GetConfig != nil:
		writeResult(w, renderGetConfigResult("GetConfig", h.extended.GetConfig()))

	case body.GetConfig2 != nil:
		writeResult(w, renderGetConfigResult("GetConfig2", h.extended.GetConfig2()))

	case body.GetCookie != nil:
		writeResult(w, renderGetCookieResult(h.extended.GetCookie()))

	case body.SyncUpdates != nil:
		h.handleSyncUpdates(w, body.SyncUpdates)

	case body.GetExtendedUpdateInfo != nil:
		h.handleGetExtendedUpdateInfo(w, body.GetExtendedUpdateInfo)

	case body.GetExtendedUpdateInfo2 != nil, body.GetFileLocations != nil, body.GetTimestamps != nil,
		body.RefreshCache != nil, body.RegisterComputer != nil, body.StartCategoryScan != nil,
		body.SyncPrinterCatalog != nil:
		writeFault(w, http.StatusNotImplemented, "soap:Server", extendedinfo.ErrNotImplemented.Error())

	default:
		writeFault(w, http.StatusBadRequest, "soap:Client", "unrecognized ClientWebService operation")
	}
}

func (h *ClientHandler) handleSyncUpdates(w http.ResponseWriter, req *syncUpdatesRequest) {
	params := offering.SyncParams{
		SkipSoftwareSync:          req.Parameters.SkipSoftwareSync,
		InstalledNonLeafUpdateIDs: req.Parameters.InstalledNonLeafUpdateIDs.Values,
		OtherCachedUpdateIDs:      req.Parameters.OtherCachedUpdateIDs.Values,
	}

	info, err := h.engine.SyncUpdates(params)
	if err != nil {
		h.writeEngineFault(w, err)
		return
	}
	writeResult(w, renderSyncUpdatesResult(info))
}

func (h *ClientHandler) handleGetExtendedUpdateInfo(w http.ResponseWriter, req *getExtendedUpdateInfoRequest) {
	infoTypes := make([]extendedinfo.InfoType, 0, len(req.InfoTypes.Values))
	for _, t := range req.InfoTypes.Values {
		infoTypes = append(infoTypes, extendedinfo.InfoType(t))
	}

	info, err := h.extended.GetExtendedUpdateInfo(req.RevisionIDs.Values, infoTypes, req.Locales.Values)
	if err != nil {
		h.writeEngineFault(w, err)
		return
	}
	writeResult(w, renderGetExtendedUpdateInfoResult(info))
}

func (h *ClientHandler) writeEngineFault(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, offering.ErrUnknownRevision), errors.Is(err, extendedinfo.ErrUnknownRevision):
		writeFault(w, http.StatusBadRequest, "soap:Client", err.Error())
	case errors.Is(err, catalog.ErrCatalogUnavailable):
		writeFault(w, http.StatusServiceUnavailable, "soap:Server", err.Error())
	default:
		log.Error("ClientWebService operation failed", "error", err)
		writeFault(w, http.StatusInternalServerError, "soap:Server", err.Error())
	}
}
