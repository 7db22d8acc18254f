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

package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"crest.dev/app"
	"crest.dev/binding"
	apperrors "crest.dev/errors"
	"crest.dev/router"
	"crest.dev/router/middleware/basicauth"
)

type order struct {
	ID       int64    `json:"id"`
	Customer string   `json:"customer"`
	Items    []string `json:"items"`
}

type orderInput struct {
	Customer string   `json:"customer" validate:"required,max=64"`
	Items    []string `json:"items" validate:"required,min=1,dive,required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type orderStore struct {
	mu     sync.RWMutex
	nextID int64
	orders map[int64]order
}

func newOrderStore() *orderStore {
	return &orderStore{nextID: 1, orders: map[int64]order{}}
}

func (s *orderStore) ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ctx.Err()
}

// listQuery filters GET /orders.
type listQuery struct {
	Customer string `query:"customer"`
	Limit    int    `query:"limit" default:"50" validate:"gte=1,lte=500"`
}

func (s *orderStore) list(q listQuery) []order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]order, 0, len(s.orders))
	for _, o := range s.orders {
		if q.Customer == "" || o.Customer == q.Customer {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b order) int { return cmp.Compare(a.ID, b.ID) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (s *orderStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *orderStore) get(id int64) (order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return order{}, apperrors.WithStatus(fmt.Errorf("order %d not found", id), http.StatusNotFound)
	}
	return o, nil
}

func (s *orderStore) create(in orderInput) order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := order{ID: s.nextID, Customer: in.Customer, Items: in.Items}
	s.orders[o.ID] = o
	s.nextID++
	return o
}

func (s *orderStore) delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return apperrors.WithStatus(fmt.Errorf("order %d not found", id), http.StatusNotFound)
	}
	delete(s.orders, id)
	return nil
}

// decodeOrder reads and validates an order body in any format the binding
// package decodes. Field errors use the JSON names of the input.
func decodeOrder(req *router.Request) (orderInput, error) {
	var in orderInput
	err := binding.Body(req, &in, binding.WithValidator(binding.ValidatorFunc(validate.Struct)))
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return in, err
	}
	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.FieldError{
			Path:    jsonPath(fe.Namespace()),
			Code:    fe.Tag(),
			Message: fmt.Sprintf("failed %q check", fe.Tag()),
		})
	}
	return in, apperrors.Validation(fields...)
}

// jsonPath maps "orderInput.Items[0]" to "items.0".
func jsonPath(ns string) string {
	_, ns, _ = strings.Cut(ns, ".")
	ns = strings.NewReplacer("[", ".", "]", "").Replace(ns)
	return strings.ToLower(ns)
}

func registerDemo(a *app.App, store *orderStore, adminPassword string) error {
	r := a.Router()

	api := router.NewBlueprint("api").
		GET("/orders", router.Handle0(func(req *router.Request, res *router.Response) error {
			q, err := binding.QueryAs[listQuery](req)
			if err != nil {
				return err
			}
			if err := validate.Struct(q); err != nil {
				return apperrors.WithStatus(err, http.StatusBadRequest)
			}
			return res.JSON(http.StatusOK, store.list(q))
		}), router.WithName("orders.list")).
		POST("/orders", router.Handle0(func(req *router.Request, res *router.Response) error {
			in, err := decodeOrder(req)
			if err != nil {
				return err
			}
			o := store.create(in)
			if loc, err := r.URL("orders.get", o.ID); err == nil {
				res.Header().Set("Location", loc)
			}
			return res.JSON(http.StatusCreated, o)
		}), router.WithName("orders.create")).
		GET("/orders/<int>", router.Handle1(func(_ *router.Request, res *router.Response, id int64) error {
			o, err := store.get(id)
			if err != nil {
				return err
			}
			return res.JSON(http.StatusOK, o)
		}), router.WithName("orders.get")).
		DELETE("/orders/<int>", router.Handle1(func(_ *router.Request, res *router.Response, id int64) error {
			if err := store.delete(id); err != nil {
				return err
			}
			res.SetStatus(http.StatusNoContent)
			return nil
		}), router.WithName("orders.delete")).
		GET("/orders/<int>/items/<uint>", router.Handle2(func(_ *router.Request, res *router.Response, id int64, idx uint64) error {
			o, err := store.get(id)
			if err != nil {
				return err
			}
			if idx >= uint64(len(o.Items)) {
				return apperrors.WithStatus(fmt.Errorf("order %d has no item %d", id, idx), http.StatusNotFound)
			}
			res.Text(http.StatusOK, o.Items[idx])
			return nil
		}), router.WithName("orders.item")).
		CatchAll(router.Handle0(func(req *router.Request, res *router.Response) error {
			return res.JSON(http.StatusNotFound, map[string]string{"error": "no such endpoint", "path": req.Path})
		}))

	blueprints := []*router.Blueprint{api}
	if adminPassword != "" {
		if err := r.Declare(basicauth.New(
			basicauth.WithUsers(map[string]string{"admin": adminPassword}),
			basicauth.WithRealm("crest admin"),
		)); err != nil {
			return err
		}
		blueprints = append(blueprints, router.NewBlueprint("admin").Use(basicauth.Name).
			GET("/stats", router.Handle0(func(_ *router.Request, res *router.Response) error {
				return res.JSON(http.StatusOK, map[string]int{"orders": store.count()})
			}), router.WithName("admin.stats")))
	}
	if err := r.Mount(blueprints...); err != nil {
		return err
	}

	if _, err := r.WebSocket("/ws/echo", echo, router.WithName("ws.echo")); err != nil {
		return err
	}

	r.GET("/", router.Handle0(func(_ *router.Request, res *router.Response) error {
		res.Text(http.StatusOK, a.Settings().Server.Name+" demo API: GET /api/orders, POST /api/orders, GET /api/orders/<int>\n")
		return nil
	}), router.WithName("index"))
	return nil
}

// echo writes every message back until the client closes.
func echo(conn *websocket.Conn, _ *router.Request) error {
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if err := conn.WriteMessage(kind, msg); err != nil {
			return err
		}
	}
}
