// Package feature defines the identity model for map features.
//
// A [Feature] is either a state or a district. Districts carry the identifier
// of the state that owns them. Two features are the same feature when their
// identifier and level match; attributes and geometry never take part in
// equality, so a placeholder built from a district's parent code compares
// equal to the fully loaded state it stands in for.
//
// # Stubs
//
// When a district is selected before its state has been resolved,
// [DeriveParentSelection] builds a stub: a state feature holding only the
// identifier, with [Feature.Stub] set. Consumers that later load the real
// state call [Reconcile] to swap it in.
//
//	d := &feature.Feature{ID: "4314902", Level: feature.LevelDistrict, ParentID: "RS"}
//	s := feature.DeriveParentSelection(d) // {ID: "RS", Level: state, Stub: true}
//	feature.Equal(s, loadedRS)            // true
package feature
