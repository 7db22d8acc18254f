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


// Package lambda serves a [router.Router] behind AWS API Gateway HTTP APIs.
//
// [Handler] converts payload format 2.0 events into router requests,
// dispatches them through the full middleware pipeline and converts the
// buffered response back into an API Gateway response. Bodies that are not
// textual are base64-encoded. WebSocket rules cannot be served this way and
// answer 501.
//
// Example:
//
//	func main() {
//	    r := router.MustNew()
//	    r.GET("/hello/<str>", router.Handle1(func(_ *router.Request, res *router.Response, name string) error {
//	        res.Text(http.StatusOK, "hello "+name)
//	        return nil
//	    }))
//	    lambda.Start(r)
//	}
package lambda
