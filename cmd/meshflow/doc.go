// Command meshflow turns natural language furniture descriptions into
// structured 3D scenes. It runs one-shot generations, batch manifests,
// the HTTP API server, and database schema migrations.
//
// Usage:
//
//	meshflow generate "a rustic oak bookshelf with five shelves"
//	meshflow batch prompts.txt
//	meshflow serve -config configs/meshflow.yaml
//	meshflow migrate up -config configs/meshflow.yaml
package main
