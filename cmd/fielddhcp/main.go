// Copyright 2016 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import "github.com/metal-stack/fielddhcp/cli"

// sudo ./fielddhcp serve --interface=eth1 --configure-interface
// sudo ./fielddhcp serve --pool-start=192.168.1.100 --pool-end=192.168.1.199 --trace-file=dhcp.pcap

func main() {
	cli.CLI()
}
