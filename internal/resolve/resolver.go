// Package resolve selects one preview asset and one primary data asset
// from an observation's candidate file listing. Selection is pure:
// identical candidate lists always yield identical results.
package resolve

import (
	"errors"
	"strings"

	"ObservationScanner/internal/domain"
)

// DefaultDownloadBase is the archive's HTTP download endpoint used to
// rewrite archive-scheme URIs into downloadable links.
const DefaultDownloadBase = "https://mast.stsci.edu/api/v0.1/Download/file"

var (
	// ErrNoPublicProducts marks an observation whose listing contains no
	// publicly visible candidates. The caller must skip the observation
	// entirely rather than store it with null assets.
	ErrNoPublicProducts = errors.New("no public products")

	// ErrNoUsableAssets marks a listing with public candidates but
	// neither a preview nor a data asset among them.
	ErrNoUsableAssets = errors.New("no usable assets")
)

// previewSuffixes are exact filename endings accepted in the second
// preview tier; imageLikeExts are the looser substrings of the fallback
// tier.
var (
	previewSuffixes = []string{".jpg", ".jpeg", ".png"}
	imageLikeExts   = []string{".jpg", ".jpeg", ".png", ".tif"}
)

// dataSuffix is the canonical scientific file extension.
const dataSuffix = ".fits"

// Assets are the resolved downloadable links for one observation.
type Assets struct {
	PreviewURL  *string
	DataFileURL *string
}

// Resolver turns candidate listings into resolved asset links.
type Resolver struct {
	downloadBase string
}

// New builds a resolver; an empty downloadBase falls back to the
// archive default.
func New(downloadBase string) *Resolver {
	if downloadBase == "" {
		downloadBase = DefaultDownloadBase
	}
	return &Resolver{downloadBase: downloadBase}
}

// Resolve filters candidates to public visibility and picks assets by
// fixed priority. Listing order is preserved within each tier.
func (r *Resolver) Resolve(products []domain.RawProduct) (Assets, error) {
	public := make([]domain.RawProduct, 0, len(products))
	for _, p := range products {
		if strings.EqualFold(strings.TrimSpace(p.Rights), "public") {
			public = append(public, p)
		}
	}
	if len(public) == 0 {
		return Assets{}, ErrNoPublicProducts
	}

	assets := Assets{
		PreviewURL:  r.pickPreview(public),
		DataFileURL: r.pickData(public),
	}
	if assets.PreviewURL == nil && assets.DataFileURL == nil {
		return Assets{}, ErrNoUsableAssets
	}
	return assets, nil
}

func (r *Resolver) pickPreview(public []domain.RawProduct) *string {
	for _, p := range public {
		if strings.EqualFold(strings.TrimSpace(p.ProductType), "preview") {
			if url := r.DownloadURL(p.URI); url != "" {
				return &url
			}
		}
	}

	for _, p := range public {
		name := strings.ToLower(p.Filename)
		for _, suffix := range previewSuffixes {
			if strings.HasSuffix(name, suffix) {
				if url := r.DownloadURL(p.URI); url != "" {
					return &url
				}
			}
		}
	}

	for _, p := range public {
		name := strings.ToLower(p.Filename)
		for _, ext := range imageLikeExts {
			if strings.Contains(name, ext) {
				if url := r.DownloadURL(p.URI); url != "" {
					return &url
				}
			}
		}
	}

	return nil
}

func (r *Resolver) pickData(public []domain.RawProduct) *string {
	for _, p := range public {
		if strings.HasSuffix(strings.ToLower(p.Filename), dataSuffix) {
			if url := r.DownloadURL(p.URI); url != "" {
				return &url
			}
		}
	}
	return nil
}

// DownloadURL resolves a candidate location into an absolute HTTP link.
// Archive-scheme URIs rewrite to the download endpoint; absolute
// http(s) locations pass through; anything else resolves to "".
func (r *Resolver) DownloadURL(uri string) string {
	uri = strings.TrimSpace(uri)
	switch {
	case uri == "":
		return ""
	case strings.HasPrefix(uri, "mast:"):
		return r.downloadBase + "?uri=" + uri
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return uri
	default:
		return ""
	}
}
