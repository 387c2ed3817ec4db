// Copyright 2024 The Buswire Authors
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

package docindex

// Catalog returns the sidebar index for the message package's public
// API, the index the docs command serves by default.
func Catalog() *Index {
	x := &Index{}

	x.Add(TagConstant, "TypeMethodCall", "Message type of a method call.")
	x.Add(TagConstant, "TypeMethodReturn", "Message type of a method call reply.")
	x.Add(TagConstant, "TypeError", "Message type of an error reply.")
	x.Add(TagConstant, "TypeSignal", "Message type of an emitted signal.")
	x.Add(TagConstant, "FieldPath", "Header field carrying the object path.")
	x.Add(TagConstant, "FieldInterface", "Header field carrying the interface name.")
	x.Add(TagConstant, "FieldMember", "Header field carrying the method or signal name.")
	x.Add(TagConstant, "FieldErrorName", "Header field carrying the error name of an error reply.")
	x.Add(TagConstant, "FieldReplySerial", "Header field linking a reply to the call it answers.")
	x.Add(TagConstant, "FieldDestination", "Header field naming the intended recipient.")
	x.Add(TagConstant, "FieldSender", "Header field carrying the sender's unique name.")
	x.Add(TagConstant, "FieldSignature", "Header field carrying the body's type signature.")
	x.Add(TagConstant, "FieldUnixFDs", "Header field counting attached file descriptors.")
	x.Add(TagConstant, "FlagNoReplyExpected", "Flag bit suppressing the reply to a method call.")
	x.Add(TagConstant, "FlagNoAutoStart", "Flag bit suppressing service activation.")
	x.Add(TagConstant, "FlagAllowInteractiveAuthorization", "Flag bit permitting interactive authorization.")

	x.Add(TagFn, "NewMethodCall", "Construct a method call message.")
	x.Add(TagFn, "NewMethodReturn", "Construct a reply to a method call.")
	x.Add(TagFn, "NewError", "Construct an error reply.")
	x.Add(TagFn, "NewSignal", "Construct a signal message.")

	x.Add(TagStruct, "Message", "A parsed or under-construction D-Bus message.")
	x.Add(TagStruct, "MessageType", "The kind of a message.")
	x.Add(TagStruct, "HeaderField", "A header field array entry code.")

	return x
}
