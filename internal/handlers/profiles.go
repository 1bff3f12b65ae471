package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/skillswap/backend/internal/directory"
	"github.com/skillswap/backend/internal/logging"
	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/profiles"
)

// ProfileHandler serves the caller's own profile and the browse directory.
type ProfileHandler struct {
	Profiles  ProfileService
	Directory ProfileDirectory
}

// ownProfile exposes the contact email that the directory hides.
type ownProfile struct {
	models.Profile
	Email string `json:"email"`
}

// Get handles GET /api/v1/profile.
func (h ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	profile, err := h.Profiles.Get(r.Context(), actor)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ownProfile{Profile: profile, Email: profile.Email})
}

// Save handles PUT /api/v1/profile.
func (h ProfileHandler) Save(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var input profiles.Input
	if err := decodeJSON(r, w, &input); err != nil {
		logging.FromContext(r.Context()).Warn("invalid profile payload", "error", err)
		respondMessage(r.Context(), w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.Profiles.Save(r.Context(), actor, input)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ownProfile{Profile: profile, Email: profile.Email})
}

// UploadPicture handles POST /api/v1/profile/picture with a multipart "file" field.
func (h ProfileHandler) UploadPicture(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, profiles.MaxPictureBytes+maxJSONBody)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondMessage(ctx, w, http.StatusBadRequest, "image size should be less than 5MB")
			return
		}
		logging.FromContext(ctx).Warn("invalid picture upload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "a file field is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := profiles.CheckPictureHeader(contentType, header.Size); err != nil {
		respondError(ctx, w, err)
		return
	}

	uri, err := h.Profiles.UploadPicture(ctx, actor, header.Filename, contentType, file, header.Size)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, map[string]string{"profilePicture": uri})
}

type browseResponse struct {
	Profiles   []models.Profile `json:"profiles"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PerPage    int              `json:"perPage"`
	TotalPages int              `json:"totalPages"`
}

// Browse handles GET /api/v1/profiles?q=&availability=&page=&perPage=.
func (h ProfileHandler) Browse(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	page := queryInt(query.Get("page"), 1)
	perPage := queryInt(query.Get("perPage"), directory.DefaultPerPage)

	found, err := h.Directory.Browse(r.Context(), actor.UserID, query.Get("q"), query.Get("availability"))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	if perPage > directory.MaxPerPage {
		perPage = directory.MaxPerPage
	}
	slice, totalPages := directory.Page(found, page, perPage)
	respondJSON(r.Context(), w, http.StatusOK, browseResponse{
		Profiles:   slice,
		Total:      len(found),
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	})
}

// GetPublic handles GET /api/v1/profiles/{userId}.
func (h ProfileHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	profile, err := h.Profiles.GetPublic(r.Context(), actor.UserID, r.PathValue("userId"))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, profile)
}

func queryInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
