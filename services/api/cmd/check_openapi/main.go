// Command check_openapi verifies that openapi.yaml documents exactly the
// routes the API server registers and keeps the shared error schema intact.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"bookreview/pkg/store"
	"bookreview/services/api/internal/app"
	"bookreview/services/api/internal/server"
)

type openAPIDoc struct {
	Paths      map[string]map[string]yaml.Node `yaml:"paths"`
	Components struct {
		Schemas map[string]schema `yaml:"schemas"`
	} `yaml:"components"`
}

type schema struct {
	Type                 string            `yaml:"type"`
	Ref                  string            `yaml:"$ref"`
	Properties           map[string]schema `yaml:"properties"`
	Required             []string          `yaml:"required"`
	Items                *schema           `yaml:"items"`
	AdditionalProperties *schema           `yaml:"additionalProperties"`
}

var httpMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"patch": true, "head": true, "options": true, "trace": true,
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <openapi.yaml>\n", os.Args[0])
		os.Exit(2)
	}
	if err := run(os.Args[1]); err != nil {
		exitErr(err)
	}
	fmt.Println("OpenAPI consistency check passed.")
}

func run(path string) error {
	doc, err := loadDoc(path)
	if err != nil {
		return err
	}
	errSchema, err := getSchema(doc, "ErrorResponse")
	if err != nil {
		return err
	}
	if err := validateErrorResponse(errSchema); err != nil {
		return err
	}
	pageSchema, err := getSchema(doc, "Pagination")
	if err != nil {
		return err
	}
	if err := validatePagination(pageSchema); err != nil {
		return err
	}

	routes, err := registeredRoutes()
	if err != nil {
		return err
	}
	return ensureSameRoutes(documentedRoutes(doc), routes)
}

func loadDoc(path string) (openAPIDoc, error) {
	var doc openAPIDoc
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func getSchema(doc openAPIDoc, name string) (schema, error) {
	if doc.Components.Schemas == nil {
		return schema{}, errors.New("components.schemas missing")
	}
	s, ok := doc.Components.Schemas[name]
	if !ok {
		return schema{}, fmt.Errorf("schema %q missing", name)
	}
	return s, nil
}

func validateErrorResponse(s schema) error {
	if s.Type != "object" {
		return errors.New("ErrorResponse must be object")
	}
	required := makeSet(s.Required)
	for _, field := range []string{"success", "error"} {
		if !required[field] {
			return fmt.Errorf("ErrorResponse.required must include %q", field)
		}
	}
	if p, ok := s.Properties["success"]; !ok || p.Type != "boolean" {
		return errors.New("ErrorResponse.success must be boolean")
	}
	if p, ok := s.Properties["error"]; !ok || p.Type != "string" {
		return errors.New("ErrorResponse.error must be string")
	}
	details, ok := s.Properties["details"]
	if !ok || details.Type != "object" {
		return errors.New("ErrorResponse.details must be object")
	}
	if details.AdditionalProperties == nil || details.AdditionalProperties.Type != "string" {
		return errors.New("ErrorResponse.details values must be strings")
	}
	return nil
}

func validatePagination(s schema) error {
	required := makeSet(s.Required)
	for _, field := range []string{"page", "limit", "total", "pages"} {
		if !required[field] {
			return fmt.Errorf("Pagination.required must include %q", field)
		}
		if p, ok := s.Properties[field]; !ok || p.Type != "integer" {
			return fmt.Errorf("Pagination.%s must be integer", field)
		}
	}
	return nil
}

func documentedRoutes(doc openAPIDoc) []string {
	var out []string
	for path, item := range doc.Paths {
		for method := range item {
			if !httpMethods[method] {
				continue
			}
			out = append(out, strings.ToUpper(method)+" "+normalizePath(path))
		}
	}
	sort.Strings(out)
	return out
}

// registeredRoutes builds a server on in-memory dependencies and walks its
// router. The Redis client is never dialed.
func registeredRoutes() ([]string, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	sessions, err := store.NewJWTSessionStore(key, store.JWTOptions{Revoker: store.NewMemoryTokenRevoker()})
	if err != nil {
		return nil, err
	}
	core, err := app.New(app.Config{Store: store.NewMemoryStore(), Sessions: sessions})
	if err != nil {
		return nil, err
	}
	defer core.Close()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	defer client.Close()

	srv, err := server.New(server.Config{App: core, Redis: client})
	if err != nil {
		return nil, err
	}
	var out []string
	err = chi.Walk(srv.Routes(), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		out = append(out, method+" "+normalizePath(route))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk routes: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

func ensureSameRoutes(documented, registered []string) error {
	doc := makeSet(documented)
	reg := makeSet(registered)
	var problems []string
	for _, r := range registered {
		if !doc[r] {
			problems = append(problems, "undocumented route: "+r)
		}
	}
	for _, r := range documented {
		if !reg[r] {
			problems = append(problems, "documented route not registered: "+r)
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "\n"))
	}
	return nil
}

func normalizePath(p string) string {
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func makeSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
