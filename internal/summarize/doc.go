// Package summarize builds the Russian digest prompt for an episode transcript
// and asks a chain of chat completion providers for the digest, moving to the
// next provider when one fails or returns an empty reply.
package summarize
