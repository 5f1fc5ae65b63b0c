package api

// @title AQSTN API
// @version 1.0.0
// @description Autonomous Quantum-Swarm Trading Network node API: release metadata and the node registry.

// @contact.name Evolution Ecosystem

// @host localhost:8080
// @BasePath /api/v1

// @tag.name System
// @tag.description Health, build and release metadata

// @tag.name Nodes
// @tag.description Nodes announced in the registry
