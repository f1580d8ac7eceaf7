package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Router holds everything served over HTTP. Thumbnails and Events are
// optional.
type Router struct {
	Jobs           *JobHandler
	Albums         *AlbumHandler
	Faces          *FaceHandler
	Thumbnails     http.HandlerFunc
	Events         http.HandlerFunc
	AllowedOrigins []string
}

// Handler builds the chi router
func (rt Router) Handler() http.Handler {
	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   rt.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(corsOptions).Handler)

	r.Route("/api", func(r chi.Router) {
		// synchronous processing runs as long as the job does
		r.Post("/images/process", rt.Jobs.ProcessImages)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Route("/jobs", func(r chi.Router) {
				r.Post("/", rt.Jobs.CreateJob)
				r.Get("/{job_id}", rt.Jobs.GetJob)
			})

			r.Get("/albums", rt.Albums.ListAlbums)

			if rt.Faces != nil {
				r.Post("/faces/enroll", rt.Faces.Enroll)
				r.Post("/faces/verify", rt.Faces.Verify)
			}

			if rt.Thumbnails != nil {
				r.Get("/thumbnails/{user_id}/{file}", rt.Thumbnails)
				log.Printf("Registered thumbnail server at /api/thumbnails/*")
			}
		})
	})

	if rt.Events != nil {
		r.Get("/ws/jobs", rt.Events)
	}

	return r
}
