// Package serialization reads and writes model weights in the SafeTensors format.
//
// SafeTensors is the checkpoint format used by HuggingFace and readable
// from PyTorch, so a state dict saved here loads into a PyTorch module
// with the same layer tree and vice versa:
//
//	Format Structure:
//	  [8 bytes: Header Size N (uint64 LE)]
//	  [N bytes: JSON header]
//	  [Tensor data: raw little-endian bytes]
//
// The JSON header maps every tensor name to its dtype, shape and
// [start, end) byte range within the data section. An optional
// "__metadata__" entry holds string key/value pairs. Files written by
// this package record a SHA-256 digest of the data section in the
// metadata, and readers verify it when present.
//
// Only F32 and F64 tensors are supported.
//
// Example usage:
//
//	// Save
//	if err := serialization.WriteFile("mobilenet.safetensors", model.StateDict(), nil); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Load
//	stateDict, metadata, err := serialization.ReadFile("mobilenet.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = model.LoadStateDict(stateDict)
package serialization
