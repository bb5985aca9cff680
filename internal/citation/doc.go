// Package citation models the publication-list entries the image pipeline
// enriches, their tagged identifiers, and the per-tier resolution result.
package citation
