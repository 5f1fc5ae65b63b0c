package aqstn

// Release metadata.
const (
	Name      = "Autonomous Quantum-Swarm Trading Network"
	ShortName = "AQSTN"
	Version   = "1.0.0"
	Author    = "Evolution Ecosystem"

	Description = Name + " (" + ShortName + ")\n" +
		"Production-ready trading system integrating quantum computing, neural networks, and swarm intelligence."
)
