// Package service holds the pipeline's business logic: the dispatcher
// that fans a questionnaire response out into per-processor work, and the
// executor that carries one invocation through rendering, generation, and
// post-processing. Services depend only on the store interfaces and the
// generation/sandbox boundaries, never on concrete platform code.
package service
