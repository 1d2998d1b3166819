// Package epi provides the core continuous-time stochastic epidemic
// engine: individual-level populations, the four compartment model
// variants (SI, SIR, SEI, SEIR), pluggable risk functions, forward
// simulation by competing hazards, and exact likelihood evaluation over
// partially observed event histories.
//
// # Reading Guide
//
// Start with these three files to understand the kernel:
//   - events.go: EventHistory, the per-individual transition record and its
//     ordering invariants
//   - simulator.go: the competing-hazards event loop and infector draws
//   - likelihood.go: the piecewise-constant log-likelihood evaluator shared
//     by simulation validation and MCMC
//
// # Architecture
//
// The epi package defines the data model and the two halves of the shared
// event/likelihood machinery; inference lives in sub-packages:
//   - epi/mcmc/: data-augmentation MCMC over parameters, latent event
//     times and the transmission network
//   - epi/trace/: per-chain sweep records and posterior summarization
//
// All randomness is threaded explicitly: PartitionedRNG derives isolated
// per-subsystem and per-chain generators from one master seed, and no code
// in this module touches process-wide RNG state.
package epi
