package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/flashshelf/internal/entities"
	"github.com/mrlokans/flashshelf/internal/library"
	"github.com/mrlokans/flashshelf/internal/remote"
)

const (
	minRating = 0
	maxRating = 5
)

type BooksController struct {
	books BookService
}

func NewBooksController(books BookService) *BooksController {
	return &BooksController{
		books: books,
	}
}

type booksResponse struct {
	Books   []entities.Book `json:"books"`
	Count   int             `json:"count"`
	Loading bool            `json:"loading"`
	Error   string          `json:"error,omitempty"`
}

func newBooksResponse(state library.State, tag string) booksResponse {
	books := state.Books
	if tag != "" {
		books = library.FilterByTag(books, tag)
	}
	if books == nil {
		books = []entities.Book{}
	}
	return booksResponse{
		Books:   books,
		Count:   len(books),
		Loading: state.Loading,
		Error:   state.Error,
	}
}

// GetBooks returns the current snapshot, newest first. ?tag= keeps only books
// carrying that exact tag.
func (controller *BooksController) GetBooks(c *gin.Context) {
	tag := strings.TrimSpace(c.Query("tag"))
	c.JSON(http.StatusOK, newBooksResponse(controller.books.Snapshot(), tag))
}

type updateBookRequest struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

// UpdateBook changes rating and/or comment. The collection follows through
// the change feed, not through this response.
func (controller *BooksController) UpdateBook(c *gin.Context) {
	id := c.Param("id")

	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if req.Rating == nil && req.Comment == nil {
		respondBadRequest(c, "rating or comment is required")
		return
	}
	if req.Rating != nil && (*req.Rating < minRating || *req.Rating > maxRating) {
		respondBadRequest(c, "rating must be between 0 and 5")
		return
	}

	update := entities.BookUpdate{Rating: req.Rating, Comment: req.Comment}
	if err := controller.books.UpdateBook(c.Request.Context(), id, update); err != nil {
		if errors.Is(err, remote.ErrBookNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondBadGateway(c, err, "update book")
		return
	}
	c.Status(http.StatusNoContent)
}

func (controller *BooksController) DeleteBook(c *gin.Context) {
	id := c.Param("id")

	if err := controller.books.DeleteBook(c.Request.Context(), id); err != nil {
		if errors.Is(err, remote.ErrBookNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondBadGateway(c, err, "delete book")
		return
	}
	c.Status(http.StatusNoContent)
}
