package domain

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Paging defaults.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// SourceFilterPolicy records how a caller-supplied source filter was interpreted.
type SourceFilterPolicy int

const (
	// SourceFilterNone means no filter was supplied (absent or blank).
	SourceFilterNone SourceFilterPolicy = iota
	// SourceFilterApplied means the filter named a known source and restricts results.
	SourceFilterApplied
	// SourceFilterIgnored means the filter did not name a known source.
	// Results are unfiltered, exactly as with SourceFilterNone.
	SourceFilterIgnored
)

func (p SourceFilterPolicy) String() string {
	switch p {
	case SourceFilterApplied:
		return "applied"
	case SourceFilterIgnored:
		return "ignored"
	default:
		return "none"
	}
}

// SortField is a sortable flashcard attribute.
type SortField string

// Sortable fields, spelled as accepted in the sort parameter.
const (
	SortByCreatedAt    SortField = "createdat"
	SortByUpdatedAt    SortField = "updatedat"
	SortByFrontContent SortField = "frontcontent"
)

// SortDirection is ASC or DESC.
type SortDirection string

// Sort directions.
const (
	SortAscending  SortDirection = "ASC"
	SortDescending SortDirection = "DESC"
)

// FlashcardQuery is a normalised request for one page of a user's flashcards.
// Build it with NewFlashcardQuery so the defaulting rules are applied.
type FlashcardQuery struct {
	UserID uuid.UUID

	SourcePolicy SourceFilterPolicy
	// Source is set only when SourcePolicy is SourceFilterApplied.
	Source FlashcardSource
	// RawSource keeps the caller's filter text for logging.
	RawSource string

	SortField     SortField
	SortDirection SortDirection

	Page int
	Size int
}

// NewFlashcardQuery normalises optional query parameters:
//
//   - source: absent or blank means no filter; a known source (any case)
//     filters; anything else is ignored.
//   - sort: absent or blank means createdat DESC. Otherwise "field[,dir]",
//     where an unknown field falls back to createdat and the direction is
//     DESC only when the trimmed dir equals "desc" in any case.
//   - page defaults to 0 and size to DefaultPageSize; size is capped at
//     MaxPageSize.
//
// A negative page or a size below one yields ErrInvalidPageRequest.
func NewFlashcardQuery(userID uuid.UUID, source, sort *string, page, size *int) (FlashcardQuery, error) {
	q := FlashcardQuery{
		UserID: userID,
		Page:   0,
		Size:   DefaultPageSize,
	}

	q.SourcePolicy, q.Source = ParseSourceFilter(source)
	if source != nil {
		q.RawSource = *source
	}
	q.SortField, q.SortDirection = ParseSort(sort)

	if page != nil {
		if *page < 0 {
			return FlashcardQuery{}, NewValidationError("page", "must not be negative", ErrInvalidPageRequest)
		}
		q.Page = *page
	}
	if size != nil {
		if *size < 1 {
			return FlashcardQuery{}, NewValidationError("size", "must be at least 1", ErrInvalidPageRequest)
		}
		q.Size = min(*size, MaxPageSize)
	}

	return q, nil
}

// ParseSourceFilter interprets an optional source filter.
func ParseSourceFilter(source *string) (SourceFilterPolicy, FlashcardSource) {
	if source == nil || strings.TrimSpace(*source) == "" {
		return SourceFilterNone, ""
	}
	if src, ok := ParseFlashcardSource(*source); ok {
		return SourceFilterApplied, src
	}
	return SourceFilterIgnored, ""
}

// ParseSort interprets an optional "field[,direction]" sort parameter.
func ParseSort(sort *string) (SortField, SortDirection) {
	if sort == nil || strings.TrimSpace(*sort) == "" {
		return SortByCreatedAt, SortDescending
	}

	parts := strings.Split(*sort, ",")

	field := SortByCreatedAt
	switch f := SortField(strings.ToLower(strings.TrimSpace(parts[0]))); f {
	case SortByCreatedAt, SortByUpdatedAt, SortByFrontContent:
		field = f
	}

	direction := SortAscending
	if len(parts) > 1 && strings.EqualFold(strings.TrimSpace(parts[1]), "desc") {
		direction = SortDescending
	}

	return field, direction
}

// FiltersBySource reports whether the query restricts results to one source.
func (q FlashcardQuery) FiltersBySource() bool {
	return q.SourcePolicy == SourceFilterApplied
}

// Matches reports whether snapshot passes the query's source filter.
func (q FlashcardQuery) Matches(s FlashcardSnapshot) bool {
	return !q.FiltersBySource() || s.Source == q.Source
}

// Offset returns the index of the first element on the requested page.
// It saturates instead of overflowing for very large page numbers.
func (q FlashcardQuery) Offset() int {
	if q.Size > 0 && q.Page > math.MaxInt/q.Size {
		return math.MaxInt
	}
	return q.Page * q.Size
}

// TotalPages returns ceil(total / size).
func (q FlashcardQuery) TotalPages(total int) int {
	if q.Size <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(q.Size)))
}

// Compare orders two snapshots according to the query's sort field and
// direction. Front content compares byte-wise.
func (q FlashcardQuery) Compare(a, b FlashcardSnapshot) int {
	var c int
	switch q.SortField {
	case SortByUpdatedAt:
		c = a.UpdatedAt.Compare(b.UpdatedAt)
	case SortByFrontContent:
		c = cmp.Compare(a.FrontContent, b.FrontContent)
	default:
		c = a.CreatedAt.Compare(b.CreatedAt)
	}
	if q.SortDirection == SortDescending {
		return -c
	}
	return c
}

// Apply filters, sorts and pages snapshots in memory. It returns the page
// content and the number of snapshots that passed the filter. The sort is
// stable, so equal keys keep their input order. A page past the end yields
// an empty slice.
func (q FlashcardQuery) Apply(snapshots []FlashcardSnapshot) ([]FlashcardSnapshot, int) {
	filtered := make([]FlashcardSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if q.Matches(s) {
			filtered = append(filtered, s)
		}
	}

	slices.SortStableFunc(filtered, q.Compare)

	total := len(filtered)
	start := q.Offset()
	if start >= total {
		return []FlashcardSnapshot{}, total
	}
	end := min(start+q.Size, total)

	return filtered[start:end], total
}
