// Package lifecycle drives one episode from download to publication.
//
// Runner claims an eligible episode and walks it through
// unprocessed → downloading → transcribing → summarizing → published. Any
// non-terminal state may fall to failed with a reason. Only publication is
// durable: a failed episode keeps published = false in the store, its reason
// and attempt count are recorded, and a later run will pick it up again.
// Failures never escape as errors from Process; they are reported through
// the returned Outcome and one terminal log line.
package lifecycle
