package api

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"ragify/extract"
	"ragify/index"
	"ragify/store"
	"ragify/types"
)

type LibraryHandler struct {
	docs      store.DocumentStorer
	indexer   *index.Indexer
	uploadDir string
}

func NewLibraryHandler(docs store.DocumentStorer, indexer *index.Indexer, uploadDir string) *LibraryHandler {
	return &LibraryHandler{
		docs:      docs,
		indexer:   indexer,
		uploadDir: uploadDir,
	}
}

func (h *LibraryHandler) HandleUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}

	id := uuid.New()
	path := filepath.Join(h.uploadDir, id.String()+filepath.Ext(file.Filename))
	if err := c.SaveFile(file, path); err != nil {
		return err
	}
	log.Printf("[UPLOAD] File saved to: %s", path)

	// Broken PDFs are rejected at upload rather than wasting an embedding
	// pass during indexing.
	if strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
		if err := extract.ValidatePDF(path); err != nil {
			os.Remove(path)
			return err
		}
	}

	now := time.Now()
	doc := &types.Document{
		ID:         id,
		Name:       file.Filename,
		Size:       file.Size,
		Path:       path,
		Status:     types.StatusUploaded,
		UploadedAt: now,
		UpdatedAt:  now,
	}
	if err := h.docs.Create(c.Context(), doc); err != nil {
		os.Remove(path)
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(doc)
}

func (h *LibraryHandler) HandleList(c *fiber.Ctx) error {
	docs, err := h.docs.List(c.Context())
	if err != nil {
		return err
	}
	if docs == nil {
		docs = []types.Document{}
	}
	return c.JSON(docs)
}

// HandleGet serves the pollable indexing state: clients watch status, stage
// and progress here while a fire-and-forget indexing run is in flight.
func (h *LibraryHandler) HandleGet(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	doc, err := h.docs.GetByID(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

func (h *LibraryHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	doc, err := h.docs.GetByID(c.Context(), id)
	if err != nil {
		return err
	}

	h.indexer.DeleteDocumentVectors(c.Context(), id)

	if err := os.Remove(doc.Path); err != nil && !os.IsNotExist(err) {
		log.Printf("[LIBRARY] Failed to remove file %s: %v", doc.Path, err)
	}

	if err := h.docs.Delete(c.Context(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"result": "deleted"})
}

// HandleIndex starts an indexing run. The status compare-and-swap is the only
// entry gate: a second request while a run is in flight gets a 409. The run
// itself is detached from the request, progress is polled via HandleGet.
func (h *LibraryHandler) HandleIndex(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	doc, err := h.docs.GetByID(c.Context(), id)
	if err != nil {
		return err
	}

	started, err := h.docs.BeginIndexing(c.Context(), id)
	if err != nil {
		return err
	}
	if !started {
		return ErrConflict("document is already being indexed")
	}

	go h.runIndexing(doc)

	stage := types.StageExtracting
	doc.Status = types.StatusIndexing
	doc.IndexingStage = &stage
	doc.IndexingProgress = 0
	return c.Status(fiber.StatusAccepted).JSON(doc)
}

// runIndexing owns the detached run. On failure the document is reset to
// uploaded so the client can retry.
func (h *LibraryHandler) runIndexing(doc *types.Document) {
	ctx := context.Background()
	if err := h.indexer.IndexDocument(ctx, doc); err != nil {
		log.Printf("[LIBRARY] Indexing of document %s failed: %v", doc.ID, err)
		if resetErr := h.docs.ResetForRetry(ctx, doc.ID); resetErr != nil {
			log.Printf("[LIBRARY] Failed to reset document %s for retry: %v", doc.ID, resetErr)
		}
	}
}
