// Package geodata loads the state and district layers atlas interacts with.
//
// Both layers are GeoJSON FeatureCollections. Each GeoJSON feature becomes
// an immutable [feature.Feature] whose identifier, name, parent reference
// and population are read from configurable properties ([Keys]). The
// defaults match the IBGE municipal mesh: states are keyed by SIGLA_UF,
// districts by CD_MUN with SIGLA_UF as the parent reference.
//
// A [Catalogue] indexes both layers. It resolves parent states for the
// engine (see [Catalogue.Resolve]), supplies geometries to the reference
// viewport sink and lists the districts of a state for the explorer.
//
// Sources may be local paths or http(s) URLs. [Client] fetches URLs with
// retry and keeps response bodies in a [cache.Cache].
package geodata
