// Package aqstn is the Autonomous Quantum-Swarm Trading Network (AQSTN).
//
// Production-ready trading system integrating quantum computing, neural networks,
// and swarm intelligence.
//
// The root package only carries release metadata. The node runtime lives under
// internal/ and is started by cmd/aqstn.
package aqstn
