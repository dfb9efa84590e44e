// Package prediction defines the interface to the learned assignment
// collaborator and the feature vector exchanged with it. The collaborator is
// external; only its contract and a deterministic mock live here.
package prediction
