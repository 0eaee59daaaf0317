// Package rendering turns a table.TableData into an image or PDF artifact by
// driving a headless Chrome instance.
//
// This package contains:
// - BuildMarkup for generating the self-contained HTML table document
// - Engine and Session interfaces over the external rendering engine
// - ChromedpEngine implementation using the Chrome DevTools Protocol
// - TableRenderer, the staged render pipeline with guaranteed cleanup
//
// Example usage:
//
//	engine := rendering.NewChromedpEngine(&rendering.ChromedpConfig{NoSandbox: true})
//	renderer, err := rendering.NewTableRenderer(engine, &rendering.Config{OutputDir: "output"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	path, err := renderer.Render(ctx, data, table.RenderTargetRaster)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Rendered table: %s\n", path)
package rendering
