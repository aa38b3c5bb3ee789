package main

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/apperr"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/httputil"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/middleware"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/scoring"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.BadRequest(w, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

func categoryParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	category, err := url.PathUnescape(chi.URLParam(r, "category"))
	if err != nil || category == "" {
		httputil.BadRequest(w, "Invalid category", err)
		return "", false
	}
	return category, true
}

// decodeOptional decodes a JSON body when one was sent.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := httputil.DecodeJSON(w, r, v); err != nil {
		httputil.Error(w, "Invalid request body", err)
		return false
	}
	return true
}

func newRouter(app *application) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(app.sessions.LoadAndSave)
	r.Use(middleware.LoadOrganizer(app.sessions))

	r.Post("/session", func(w http.ResponseWriter, r *http.Request) {
		var input struct {
			Name string `json:"name"`
		}
		if err := httputil.DecodeJSON(w, r, &input); err != nil {
			httputil.Error(w, "Invalid session request", err)
			return
		}
		input.Name = strings.TrimSpace(input.Name)
		if input.Name == "" {
			httputil.BadRequest(w, "Organizer name is required", nil)
			return
		}
		if err := middleware.StartSession(r.Context(), app.sessions, input.Name); err != nil {
			httputil.InternalServerError(w, "Failed to start session", err)
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]string{"organizer": input.Name})
	})

	r.Delete("/session", func(w http.ResponseWriter, r *http.Request) {
		if err := app.sessions.Destroy(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to end session", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/scoring", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]any{
			"formats":        scoring.FormatNames(),
			"rules":          scoring.RuleNames(),
			"default_format": scoring.DefaultFormat,
			"default_rule":   scoring.DefaultRule,
		})
	})

	r.Get("/tournaments/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		data, err := app.tournaments.GetTournamentData(r.Context(), id)
		if err != nil {
			httputil.Error(w, "Failed to get tournament", err)
			return
		}
		httputil.JSON(w, http.StatusOK, data)
	})

	r.Get("/tournaments/{id}/categories", func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		categories, err := app.tournaments.Categories(r.Context(), id)
		if err != nil {
			httputil.Error(w, "Failed to partition registrations", err)
			return
		}
		httputil.JSON(w, http.StatusOK, categories)
	})

	r.Get("/tournaments/{id}/live", func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		app.hub.ServeWS(w, r, id.String())
	})

	r.Get("/pools/{id}/standings", func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		standings, err := app.standings.ComputeStandings(r.Context(), id)
		if err != nil {
			httputil.Error(w, "Failed to compute standings", err)
			return
		}
		httputil.JSON(w, http.StatusOK, standings)
	})

	r.Get("/matches/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		match, err := app.matches.GetMatch(r.Context(), id)
		if err != nil {
			httputil.Error(w, "Failed to get match", err)
			return
		}
		httputil.JSON(w, http.StatusOK, match)
	})

	r.Get("/matches/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		history, err := app.matches.History(r.Context(), id)
		if err != nil {
			httputil.Error(w, "Failed to get match history", err)
			return
		}
		httputil.JSON(w, http.StatusOK, history)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireOrganizer)

		r.Post("/tournaments", func(w http.ResponseWriter, r *http.Request) {
			var input struct {
				Name string `json:"name"`
			}
			if err := httputil.DecodeJSON(w, r, &input); err != nil {
				httputil.Error(w, "Invalid tournament", err)
				return
			}
			tournament, err := app.tournaments.CreateTournament(r.Context(), input.Name)
			if err != nil {
				httputil.Error(w, "Failed to create tournament", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, tournament)
		})

		r.Post("/tournaments/{id}/registrations", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			var input service.RegistrationInput
			if err := httputil.DecodeJSON(w, r, &input); err != nil {
				httputil.Error(w, "Invalid registration", err)
				return
			}
			result, err := app.tournaments.Register(r.Context(), id, input)
			if err != nil {
				httputil.Error(w, "Failed to register", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, result)
		})

		r.Post("/tournaments/{id}/partners", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			var input service.PartnerInput
			if err := httputil.DecodeJSON(w, r, &input); err != nil {
				httputil.Error(w, "Invalid partner", err)
				return
			}
			result, err := app.tournaments.AssignPartner(r.Context(), id, input)
			if err != nil {
				httputil.Error(w, "Failed to assign partner", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, result)
		})

		r.Post("/tournaments/{id}/categories/{category}/pools", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			category, ok := categoryParam(w, r)
			if !ok {
				return
			}
			var input service.PoolFixtureInput
			if !decodeOptional(w, r, &input) {
				return
			}
			input.TournamentID = id
			input.Category = category

			fixtures, err := app.fixtures.GeneratePoolFixtures(r.Context(), input)
			if err != nil {
				httputil.Error(w, "Failed to generate pools", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, fixtures)
		})

		r.Post("/tournaments/{id}/categories/{category}/knockout", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			category, ok := categoryParam(w, r)
			if !ok {
				return
			}

			var fixtures *service.KnockoutFixtures
			var err error
			if r.URL.Query().Get("direct") == "true" {
				fixtures, err = app.fixtures.GenerateDirectKnockout(r.Context(), id, category)
			} else {
				fixtures, err = app.fixtures.GenerateKnockoutFixtures(r.Context(), id, category)
			}
			if err != nil {
				httputil.Error(w, "Failed to generate knockout", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, fixtures)
		})

		r.Delete("/tournaments/{id}/fixtures", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}

			var result *service.DeleteResult
			var err error
			if category := r.URL.Query().Get("category"); category != "" {
				result, err = app.fixtures.DeleteCategoryFixtures(r.Context(), id, category)
			} else {
				result, err = app.fixtures.DeleteFixtures(r.Context(), id)
			}
			if err != nil {
				httputil.Error(w, "Failed to delete fixtures", err)
				return
			}
			httputil.JSON(w, http.StatusOK, result)
		})

		r.Post("/matches/{id}/start", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			match, err := app.matches.StartMatch(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Failed to start match", err)
				return
			}
			httputil.JSON(w, http.StatusOK, match)
		})

		r.Post("/matches/{id}/live", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			var input service.LiveScoreInput
			if err := httputil.DecodeJSON(w, r, &input); err != nil {
				httputil.Error(w, "Invalid live score", err)
				return
			}
			match, err := app.matches.UpdateLiveScore(r.Context(), id, input)
			if err != nil {
				httputil.Error(w, "Failed to update live score", err)
				return
			}
			httputil.JSON(w, http.StatusOK, match)
		})

		r.Post("/matches/{id}/score", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			var input service.ScoreInput
			if err := httputil.DecodeJSON(w, r, &input); err != nil {
				httputil.Error(w, "Invalid score", err)
				return
			}
			if len(input.SetScores) == 0 {
				httputil.Error(w, "Invalid score", apperr.Validation("at least one set score is required"))
				return
			}
			result, err := app.matches.RecordScore(r.Context(), id, input)
			if err != nil {
				httputil.Error(w, "Failed to record score", err)
				return
			}
			httputil.JSON(w, http.StatusOK, result)
		})

		r.Post("/matches/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			match, err := app.matches.CancelMatch(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Failed to cancel match", err)
				return
			}
			httputil.JSON(w, http.StatusOK, match)
		})
	})

	return r
}
