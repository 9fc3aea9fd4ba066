/*
 *    Copyright 2026 The Mercurio Authors
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package xtrace holds the otel tracer name and InitProvider, which
// installs a jaeger or zipkin exporting provider. The server looks its
// tracer up by Name but starts no spans, and mercuriod does not call
// InitProvider.
package xtrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"
	"go.opentelemetry.io/otel/trace"
)

// Name is the tracer name every module looks up with
// otel.GetTracerProvider().Tracer(xtrace.Name).
const Name = "github.com/frenzox/mercurio"

// Exporter selects which trace backend InitProvider sends spans to.
type Exporter string

const (
	ExporterNone   Exporter = ""
	ExporterJaeger Exporter = "jaeger"
	ExporterZipkin Exporter = "zipkin"
)

// InitProvider installs a global TracerProvider exporting to backend
// (or a no-op provider if backend is ExporterNone/endpoint is empty),
// and returns a shutdown func to flush on exit.
func InitProvider(backend Exporter, endpoint string) (shutdown func(), err error) {
	if backend == ExporterNone || endpoint == "" {
		return func() {}, nil
	}

	var exp sdktrace.SpanExporter
	switch backend {
	case ExporterJaeger:
		exp, err = jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
	case ExporterZipkin:
		exp, err = zipkin.New(endpoint)
	default:
		return func() {}, nil
	}
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceNameKey.String("mercurio"))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func() { _ = tp.Shutdown(context.Background()) }, nil
}

// Tracer returns the process tracer, matching the teacher's
// otel.GetTracerProvider().Tracer(xtrace.Name) call site.
func Tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(Name)
}
