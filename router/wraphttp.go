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

package router

import (
	"net/http"
)

// WrapHTTP adapts a net/http handler to a rule handler without parameters.
// The handler writes into the buffered response; streaming handlers see
// their output once the pipeline unwinds.
//
//	r.GET("/metrics", router.WrapHTTP(promhttp.Handler()))
func WrapHTTP(h http.Handler) Handler {
	return Handle0(func(req *Request, res *Response) error {
		hr, err := req.toHTTP()
		if err != nil {
			return err
		}
		h.ServeHTTP(res, hr)
		return nil
	})
}

// toHTTP returns the underlying request, or builds one for requests from
// other transports.
func (r *Request) toHTTP() (*http.Request, error) {
	if r.http != nil {
		return r.http, nil
	}
	target := r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}
	hr, err := http.NewRequestWithContext(r.Context(), r.RawMethod, target, r.Body)
	if err != nil {
		return nil, err
	}
	hr.Header = r.Header
	hr.RemoteAddr = r.RemoteAddr
	hr.Host = r.Host
	return hr, nil
}
