// Copyright (c) MeshFlow Authors.
// Licensed under the MIT License.

/*
Package types provides the shared type definitions for the meshflow pipeline.

types is the lowest-level package of the module. It depends on no other
meshflow package and supplies the contracts the pipeline, geometry, llm and
api layers exchange:

  - Component / Operation / Transform — the primitive plan a prompt compiles to
  - Decomposition / ComponentPlan     — the semantic breakdown of a prompt
  - Classification                    — the furniture gate verdict
  - Material / MaterialAssignment     — per-component material data
  - PrimitiveSpec                     — the flattened export form
  - Error / ErrorCode                 — structured errors with HTTP mapping

All structs mirror the JSON wire format consumed by the Blender bridge
script, so encoding/json round-trips them without adapters.
*/
package types
