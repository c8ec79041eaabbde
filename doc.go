// Package lectern answers questions about course materials using
// retrieval-augmented generation.
//
// Course documents are parsed and split into sentence-respecting chunks by
// the ingest package, embedded, and stored in a dual index (package
// store/sqlite or store/postgres): a catalog collection for resolving fuzzy
// course references and a content collection for filtered similarity search.
// At question time an LLM generator decides whether to call the course
// search tool (package tools/coursesearch); the orchestrator allows at most
// one tool round per question and returns the answer together with the
// source labels of the retrieved material.
//
// The root package defines the contracts the subpackages implement:
// Provider and EmbeddingProvider for model backends, Index for storage,
// and Tool for generator-callable capabilities.
package lectern
