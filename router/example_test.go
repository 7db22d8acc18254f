// Copyright 2025 The Crest Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package router_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"

	"crest.dev/router"
)

// ExampleNew demonstrates creating a router and serving a request.
func ExampleNew() {
	r, err := router.New()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	r.GET("/hello/<string>", router.Handle1(func(_ *router.Request, res *router.Response, name string) error {
		res.Text(http.StatusOK, "hello "+name)
		return nil
	}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/hello/gopher", nil))
	fmt.Println(w.Code, w.Body.String())
	// Output: 200 hello gopher
}

// ExampleRouter_Match demonstrates parameter priority.
func ExampleRouter_Match() {
	r := router.MustNew()
	r.GET("/v/<int>", func(int64) {})
	r.GET("/v/<float>", func(float64) {})
	r.GET("/v/<string>", func(string) {})

	for _, p := range []string{"/v/10", "/v/2.5", "/v/ten"} {
		m := r.Match(router.MethodGet, p)
		fmt.Println(p, m.Rule.Template(), m.Args[0])
	}
	// Output:
	// /v/10 /v/<int> 10
	// /v/2.5 /v/<float> 2.5
	// /v/ten /v/<string> ten
}

// ExampleRouter_AddRoute demonstrates registration errors.
func ExampleRouter_AddRoute() {
	r := router.MustNew()

	_, err := r.AddRoute(router.Methods(router.MethodGet), "/users/<int>", func(id string) {})
	fmt.Println(errors.Is(err, router.ErrHandlerSignatureMismatch))

	_, err = r.AddRoute(router.Methods(router.MethodGet), "/users/<bool>", func(string) {})
	fmt.Println(errors.Is(err, router.ErrMalformedTemplate))
	// Output:
	// true
	// true
}

// ExampleRouter_Mount demonstrates blueprints.
func ExampleRouter_Mount() {
	r := router.MustNew()

	v1 := router.NewBlueprint("v1").GET("/items/<uint>", func(uint64) {})
	api := router.NewBlueprint("api").Register(v1)
	if err := r.Mount(api); err != nil {
		fmt.Println(err)
		return
	}

	for _, rule := range r.Rules() {
		fmt.Println(rule.Methods(), rule.Template())
	}
	// Output: GET /api/v1/items/<uint>
}

// ExampleSliceOf demonstrates reading another middleware's context slice.
func ExampleSliceOf() {
	type user struct{ name string }

	auth := router.NewMiddleware("auth", router.Hooks[user]{
		Before: func(req *router.Request, res *router.Response, u *user) router.Flow {
			u.name = req.Header.Get("X-User")
			if u.name == "" {
				res.Text(http.StatusUnauthorized, "who are you?")
				return router.Stop
			}
			return router.Continue
		},
	}, router.Expose())

	r := router.MustNew()
	r.Use(auth)
	r.GET("/me", router.Handle0(func(req *router.Request, res *router.Response) error {
		u, _ := router.SliceOf[user](req, auth)
		res.Text(http.StatusOK, u.name)
		return nil
	}))

	for _, who := range []string{"ada", ""} {
		req := router.NewRequest("GET", "/me")
		req.Header.Set("X-User", who)
		res := router.NewResponse()
		_ = r.Handle(req, res)
		fmt.Println(res.Status(), string(res.Body()))
	}
	// Output:
	// 200 ada
	// 401 who are you?
}
