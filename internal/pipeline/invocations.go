package pipeline

import (
	"path/filepath"

	"github.com/couchcryptid/forcing-engine/internal/config"
	"github.com/couchcryptid/forcing-engine/internal/domain"
	"github.com/couchcryptid/forcing-engine/internal/tool"
)

// Tool labels.
const (
	toolRegrid    = "regrid"
	toolDownscale = "downscale"
	toolShortwave = "shortwave"
	toolLayer     = "layer"
)

// regridInvocation maps src onto the hydro grid at out. The MRMS script has
// no outdir parameter and takes the full output path as outFile.
func regridInvocation(cfg *config.Forcing, pc config.ProductConfig, src, out string) tool.Invocation {
	params := []tool.Param{
		tool.P("srcfilename", src),
		tool.P("wgtFileName_in", pc.WeightFile),
		tool.P("dstGridName", pc.DstGridName),
	}
	if pc.Product == domain.MRMS {
		params = append(params, tool.P("outFile", out))
	} else {
		params = append(params,
			tool.P("outdir", filepath.Dir(out)),
			tool.P("outFile", filepath.Base(out)),
		)
	}
	return tool.Invocation{Tool: toolRegrid, Exe: cfg.NCLExe, Script: pc.RegridScript, Params: params}
}

func downscaleInvocation(cfg *config.Forcing, pc config.ProductConfig, regridded, out string) tool.Invocation {
	return tool.Invocation{
		Tool:   toolDownscale,
		Exe:    cfg.NCLExe,
		Script: pc.DownscaleScript,
		Params: []tool.Param{
			tool.P("inputFile1", pc.HgtData),
			tool.P("inputFile2", pc.GeoData),
			tool.P("inputFile3", regridded),
			tool.P("lapseFile", cfg.LapseRateFile),
			tool.P("outFile", out),
		},
	}
}

// shortwaveInvocation downscales shortwave radiation in the downscaled file in place.
func shortwaveInvocation(cfg *config.Forcing, pc config.ProductConfig, downscaled string) tool.Invocation {
	return tool.Invocation{
		Tool:   toolShortwave,
		Exe:    cfg.NCLExe,
		Script: cfg.ShortwaveExe,
		Params: []tool.Param{
			tool.P("inputGeo", pc.GeoData),
			tool.P("outFile", downscaled),
		},
	}
}

// layerInvocation runs one layering pass. The script is run first with
// indexFlag false to initialize the output, then with indexFlag true.
func layerInvocation(cfg *config.Forcing, pair domain.LayeringPair, out string, indexFlag bool) tool.Invocation {
	flag := "false"
	if indexFlag {
		flag = "true"
	}
	return tool.Invocation{
		Tool:   toolLayer,
		Exe:    cfg.NCLExe,
		Script: cfg.Layering.Script,
		Params: []tool.Param{
			tool.P("hrrrFile", pair.Primary),
			tool.P("rapFile", pair.Secondary),
			tool.P("indexFlag", flag),
			tool.P("outFile", out),
		},
	}
}
