package main

import (
    "context"
    "flag"
    "fmt"
    "os"
    "time"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"

    "github.com/local/docextract/internal/ai"
    cfgpkg "github.com/local/docextract/internal/config"
    "github.com/local/docextract/internal/export"
    "github.com/local/docextract/internal/extract"
    "github.com/local/docextract/internal/fetch"
    logpkg "github.com/local/docextract/internal/logger"
    "github.com/local/docextract/internal/raster"
)

func main() {
    if err := run(); err != nil {
        fmt.Fprintln(os.Stderr, "error:", err)
        os.Exit(1)
    }
}

func run() error {
    _ = godotenv.Load()

    var (
        prompt     = flag.String("prompt", "", "extraction prompt (default: full text extraction)")
        schemaPath = flag.String("schema", "", "path to a JSON schema file for structured extraction")
        docType    = flag.String("type", "", "built-in document type: invoice or contract")
        classify   = flag.Bool("classify", false, "classify the document type instead of extracting")
        pages      = flag.String("pages", "", "0-based page selection: \"a,b,c\", \"a-b\" or mixed \"a,b-c\" (default all)")
        dpi        = flag.Int("dpi", 0, "render DPI (default from RASTER_DPI or 150)")
        engine     = flag.String("engine", "vision", "extraction engine: vision, ocr, text or auto")
        visionEng  = flag.String("provider", "", "vision provider: gemini, openai or mock (default from VISION_ENGINE)")
        project    = flag.String("project", "", "Google Cloud project (default from GOOGLE_CLOUD_PROJECT)")
        location   = flag.String("location", "", "Google Cloud location (default from GOOGLE_CLOUD_LOCATION)")
        model      = flag.String("model", "", "model name (default per provider)")
        password   = flag.String("password", "", "PDF password")
        output     = flag.String("output", "", "output file (default stdout)")
        format     = flag.String("format", "json", "output format: json, csv, xlsx or text")
        timeout    = flag.Duration("timeout", 5*time.Minute, "overall timeout")
        verbose    = flag.Bool("v", false, "verbose logging")
    )
    flag.Usage = func() {
        fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <document>\n\nFlags:\n", os.Args[0])
        flag.PrintDefaults()
    }
    flag.Parse()

    if flag.NArg() != 1 {
        flag.Usage()
        return fmt.Errorf("expected exactly one document argument")
    }
    ref := flag.Arg(0)

    cfg := cfgpkg.FromEnv()
    if *project != "" { cfg.Providers.Gemini.Project = *project }
    if *location != "" { cfg.Providers.Gemini.Location = *location }
    if *visionEng != "" { cfg.Providers.Engine = *visionEng }

    level := "warn"
    if *verbose { level = "debug" }
    _ = logpkg.Init(logpkg.Options{Level: level, Pretty: true})
    defer logpkg.Close()

    if *schemaPath != "" && *docType != "" {
        return fmt.Errorf("-schema and -type are mutually exclusive")
    }

    client, err := ai.NewClientFromConfig(cfg.Providers)
    if err != nil {
        return err
    }
    modelName := *model
    if modelName == "" { modelName = ai.DefaultModel(cfg.Providers) }

    pageList, err := extract.ParsePageSelection(*pages)
    if err != nil {
        return err
    }

    renderDPI := *dpi
    if renderDPI <= 0 { renderDPI = cfg.Raster.DPI }

    opts := extract.Options{
        Engine:   extract.Engine(*engine),
        Pages:    pageList,
        DPI:      renderDPI,
        Model:    modelName,
        Password: *password,
        Raster: raster.Options{
            Format:    cfg.Raster.Format,
            Quality:   cfg.Raster.Quality,
            ColorMode: cfg.Raster.ColorMode,
        },
    }

    ctx, cancel := context.WithTimeout(context.Background(), *timeout)
    defer cancel()

    // Remote references (http, s3) are fetched to a temp file first.
    resolver := fetch.NewResolver(nil)
    localPath, cleanup, err := resolver.Resolve(ctx, ref, *password)
    if err != nil {
        return err
    }
    defer cleanup()

    ex := extract.New(client, cfg.OCR)

    var res *extract.Result
    switch {
    case *classify:
        _, res, err = ex.Classify(ctx, localPath, opts)
    case *schemaPath != "":
        var schema *extract.Schema
        schema, err = extract.LoadSchemaFile(*schemaPath)
        if err != nil {
            return err
        }
        res, err = ex.ExtractStructured(ctx, localPath, schema, opts)
    case *docType != "":
        var schema *extract.Schema
        schema, err = extract.BuiltinSchema(*docType)
        if err != nil {
            return err
        }
        res, err = ex.ExtractStructured(ctx, localPath, schema, opts)
    default:
        res, err = ex.Extract(ctx, localPath, *prompt, opts)
    }
    if err != nil {
        return err
    }

    for _, warn := range res.Warnings {
        log.Warn().Str("warning", warn).Msg("schema validation")
    }

    out, err := export.Render(res, *format)
    if err != nil {
        return err
    }

    if *output == "" || *output == "-" {
        _, err = os.Stdout.Write(append(out, '\n'))
        return err
    }
    if err := os.WriteFile(*output, out, 0o644); err != nil {
        return fmt.Errorf("write output: %w", err)
    }
    log.Info().Str("file", *output).Int("bytes", len(out)).Msg("result written")
    return nil
}
