package server

import (
	"errors"
	"net/http"
	"strings"

	"youtubeSearch/core"
)

type apiHandlers struct {
	svc Service
}

// decode reads the JSON body; on failure it answers 400 and returns false.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := core.DecodeJSON(r, v); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, core.ErrorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

// required answers 400 when value is blank.
func required(w http.ResponseWriter, field, value string) bool {
	if strings.TrimSpace(value) == "" {
		core.WriteJSON(w, http.StatusBadRequest, core.ErrorResponse{Error: field + " is required"})
		return false
	}
	return true
}

// writeFailure maps err to a status: bad input is 400, everything else 500
// with the error kind.
func writeFailure(w http.ResponseWriter, err error) {
	if statusOf(err) == http.StatusBadRequest {
		core.WriteJSON(w, http.StatusBadRequest, core.ErrorResponse{Error: err.Error()})
		return
	}
	core.WriteError(w, http.StatusInternalServerError, core.KindOf(err), err)
}

func (h *apiHandlers) searchSimilar(w http.ResponseWriter, r *http.Request) {
	var req core.SearchRequest
	if !decode(w, r, &req) || !required(w, "query", req.Query) {
		return
	}
	res, err := h.svc.SearchSimilar(r.Context(), req.Query)
	switch {
	case errors.Is(err, core.ErrNoSimilarVideo):
		core.WriteJSON(w, http.StatusOK, core.ErrorResponse{Error: core.ErrNoSimilarVideo.Error()})
	case err != nil:
		writeFailure(w, err)
	default:
		core.WriteJSON(w, http.StatusOK, res)
	}
}

func (h *apiHandlers) searchYouTube(w http.ResponseWriter, r *http.Request) {
	var req core.SearchRequest
	if !decode(w, r, &req) || !required(w, "query", req.Query) {
		return
	}
	videos, err := h.svc.SearchYouTube(r.Context(), req.Query)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if videos == nil {
		videos = []core.VideoInfo{}
	}
	core.WriteJSON(w, http.StatusOK, videos)
}

func (h *apiHandlers) channelInfo(w http.ResponseWriter, r *http.Request) {
	var req core.VideoURLRequest
	if !decode(w, r, &req) || !required(w, "video_url", req.VideoURL) {
		return
	}
	info, err := h.svc.ChannelInfo(r.Context(), req.VideoURL)
	if err != nil {
		writeFailure(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, info)
}

// transcript reports failures softly: success=false with the message.
func (h *apiHandlers) transcript(w http.ResponseWriter, r *http.Request) {
	var req core.TranscriptRequest
	if !decode(w, r, &req) || !required(w, "url", req.URL) {
		return
	}
	rec, err := h.svc.Transcript(r.Context(), req.URL)
	if err != nil {
		core.WriteJSON(w, http.StatusOK, core.TranscriptResponse{Success: false, Error: err.Error()})
		return
	}
	core.WriteJSON(w, http.StatusOK, core.TranscriptResponse{
		Success:          true,
		Data:             rec,
		TranscriptRecord: *rec,
	})
}

func (h *apiHandlers) saveChannel(w http.ResponseWriter, r *http.Request) {
	var req core.ChannelSaveRequest
	if !decode(w, r, &req) || !required(w, "channel_id", req.ChannelID) {
		return
	}
	msg, err := h.svc.SaveChannel(r.Context(), req.ChannelID)
	if err != nil {
		core.WriteJSON(w, http.StatusInternalServerError, core.ChannelSaveResponse{Error: err.Error()})
		return
	}
	core.WriteJSON(w, http.StatusOK, core.ChannelSaveResponse{Message: msg})
}

func (h *apiHandlers) saveSingleVideo(w http.ResponseWriter, r *http.Request) {
	var req core.VideoURLRequest
	if !decode(w, r, &req) || !required(w, "video_url", req.VideoURL) {
		return
	}
	h.saveVideo(w, r, req.VideoURL, core.ChunkBasic)
}

func (h *apiHandlers) saveSemanticVideo(w http.ResponseWriter, r *http.Request) {
	var req core.VideoURLRequest
	if !decode(w, r, &req) || !required(w, "video_url", req.VideoURL) {
		return
	}
	method := req.ChunkMethod
	if strings.TrimSpace(method) == "" {
		method = core.ChunkSemantic
	}
	h.saveVideo(w, r, req.VideoURL, method)
}

func (h *apiHandlers) saveVideo(w http.ResponseWriter, r *http.Request, videoURL, method string) {
	res, err := h.svc.SaveVideo(r.Context(), videoURL, method)
	if err != nil {
		core.WriteJSON(w, statusOf(err), core.Envelope{Success: false, Error: err.Error()})
		return
	}
	core.WriteJSON(w, http.StatusOK, core.Envelope{Success: true, Data: res})
}

func (h *apiHandlers) compareChunking(w http.ResponseWriter, r *http.Request) {
	var req core.VideoURLRequest
	if !decode(w, r, &req) || !required(w, "video_url", req.VideoURL) {
		return
	}
	res, err := h.svc.CompareChunking(r.Context(), req.VideoURL)
	if err != nil {
		core.WriteJSON(w, statusOf(err), core.Envelope{Success: false, Error: err.Error()})
		return
	}
	core.WriteJSON(w, http.StatusOK, core.Envelope{Success: true, Data: res})
}

func statusOf(err error) int {
	if errors.Is(err, core.ErrInvalidURL) || errors.Is(err, core.ErrEmptyInput) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
