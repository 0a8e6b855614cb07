package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"

	"ragify/answers"
	"ragify/app/api"
	"ragify/extract"
	"ragify/index"
	"ragify/model"
	"ragify/rerank"
	"ragify/search"
	"ragify/store"
	"ragify/types"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
	BodyLimit:    64 * 1024 * 1024,
}

type Server struct {
	cfg    types.Config
	logger *slog.Logger
}

func NewServer(cfg types.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: slog.Default(),
	}
}

func (s *Server) Stop() {
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		s.cfg.PGHost, s.cfg.PGPort, s.cfg.PGUser, s.cfg.PGPass, s.cfg.PGDBName)

	pool, err := store.NewPostgresStore(ctx, connStr)
	if err != nil {
		log.Fatal("error to connect to Postgres database", err)
		return
	}

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error to create tables", err)
		return
	}

	vectors, err := store.NewPgVectorStore(pool.Pool(), s.cfg.Collection, s.cfg.UpsertBatchSize)
	if err != nil {
		log.Fatal("error to create vector store", err)
		return
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		log.Fatal("error to create upload directory", err)
		return
	}

	var (
		extractor = extract.New()
		embedder  = model.NewOllamaEmbedder(s.cfg.OllamaURL, s.cfg.EmbeddingModel, s.cfg.EmbedTimeout)
		encoder   = model.NewCrossEncoder(s.cfg.CrossEncoderURL, s.cfg.CrossEncoderModel)
		llm       = model.NewGenerator(s.cfg)

		indexer   = index.NewIndexer(pool, vectors, extractor, embedder, s.cfg)
		searcher  = search.NewSearcher(vectors, embedder)
		reranker  = rerank.NewReranker(encoder, s.cfg.CrossEncoderWeight)
		generator = answers.NewGenerator(llm)

		app            = fiber.New(config)
		checkHandler   = api.NewCheckHandler()
		libraryHandler = api.NewLibraryHandler(pool, indexer, s.cfg.UploadDir)
		qaHandler      = api.NewQAHandler(searcher, reranker, generator, s.cfg.RelevanceThreshold)

		check = app.Group("/check")
		apiv1 = app.Group("/api/v1")
	)

	check.Get("/healthy", checkHandler.HandleHealthy)

	apiv1.Post("/library", libraryHandler.HandleUpload)
	apiv1.Get("/library", libraryHandler.HandleList)
	apiv1.Get("/library/:id", libraryHandler.HandleGet)
	apiv1.Delete("/library/:id", libraryHandler.HandleDelete)
	apiv1.Post("/library/:id/index", libraryHandler.HandleIndex)

	apiv1.Post("/qa", qaHandler.HandleQA)
	apiv1.Post("/chat", qaHandler.HandleChat)

	if err := app.Listen(s.cfg.ServerAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return
	}
}
