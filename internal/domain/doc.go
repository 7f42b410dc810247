// Package domain models the identity of forcing files as they move through
// the regrid, downscale and layering stages.
//
// # Products
//
// Six upstream products are supported: HRRR, RAP, NAM, GFS and CFS model
// output, and MRMS gauge-corrected radar QPE. Each product's static contract
// lives in a single table (see traitsByProduct): raw filename grammar, width of
// the forecast-hour field, model run cadence, and whether its zero-hour files
// are defective.
//
// # Raw filenames
//
// Model products embed the run identity as a token:
//
//	<YYYYMMDD>_i<HH>_f<FF..FFFF>   e.g. 20230101_i05_f003_RAP.grb2
//
// MRMS files carry a timestamp instead:
//
//	GaugeCorr_QPE_00.00_<YYYYMMDD>_<HHMMSS>.grib2
//
// The MRMS hour becomes the model run hour and the forecast hour is always 0.
//
// # Canonical outputs
//
// Every stage after regridding names its files
//
//	<root>/<YYYYMMDD>/i<HH>/<YYYYMMDD>_i<HH>_f<FFF>_<PRODUCT>.nc
//
// with <FFF> zero-padded to the product's width (3 for HRRR, RAP, NAM and
// MRMS; 4 for GFS and CFS). Layered outputs replace <PRODUCT> with
// "Analysis-Assimilation" and keep the primary product's key.
//
// # Zero-hour substitution
//
// RAP and GFS f000 files lack variables required downstream. Their
// downscaled output is copied from the most recent earlier run whose
// forecast is valid at the same instant: run r-k*cadence at forecast hour
// k*cadence, crossing into the previous day when needed. See
// [SubstitutionCandidates].
//
// # ID Generation
//
// Outcome IDs are deterministic SHA-256 hashes of product|input-basename so
// replaying an arrival yields the same ID downstream. See [generateID].
package domain
