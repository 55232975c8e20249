// Package pagination slices generated measurement sequences for the API.
//
// Three views are supported:
//
//   - Unpaginated: the first count items (deprecated /measurements endpoint)
//   - Page-based: page number and size, echoing page, size and total
//   - Cursor-based: an opaque, HMAC-signed "after" cursor and a size
//
// Example usage:
//
//	page := pagination.Paginate(items, 3, 10)
//	linked := pagination.WithLinks(page, r.URL)
//
//	codec, err := pagination.NewCursorCodec(secret)
//	cp, err := pagination.PaginateCursor(items, after, 10, codec)
//	if errors.Is(err, pagination.ErrInvalidCursor) {
//	    // 400
//	}
//
// Numeric query parameters are clamped to their bounds rather than rejected;
// only values that are not integers at all are refused (see IntParam).
package pagination
