package web

import "embed"

// TemplatesFS holds the server-rendered pages.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds stylesheets and images served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
