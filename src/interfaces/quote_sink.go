package interfaces

import "quote-observer/src/models"

// -----------------------------------------------------------------------------
// IQuoteSink receives decoded quotes from the stream supervisor.
// -----------------------------------------------------------------------------

type IQuoteSink interface {

	// Offer hands one quote downstream without blocking the network read
	// loop indefinitely. It reports whether the quote was accepted.
	Offer(q models.MQuote) bool
}
