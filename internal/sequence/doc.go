// Package sequence turns a set of analyzed tracks into an ordered mix.
//
// Build runs the greedy nearest-neighbour construction: the lowest energy
// track seeds the mix and each following slot takes the unplaced track that
// scores best against the last placed one. ForOrder skips the search and
// scores a caller supplied order. Both return whole results; nothing here
// patches an existing set of transitions.
package sequence
