// Copyright 2025 The amqpwire Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/packetd/amqpwire/amqp"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [file]",
	Short: "Decode a file of AMQP encoded values into JSON",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDump(args[0]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
	Example: "# amqpwire dump --hex payload.txt",
}

var dumpHex bool

func init() {
	dumpCmd.Flags().BoolVar(&dumpHex, "hex", false, "Treat input as hex text instead of raw bytes")
	rootCmd.AddCommand(dumpCmd)
}

func runDump(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if dumpHex {
		text := strings.Map(func(r rune) rune {
			switch r {
			case ' ', '\t', '\n', '\r':
				return -1
			}
			return r
		}, string(b))
		if b, err = hex.DecodeString(text); err != nil {
			return err
		}
	}

	vals, err := amqp.DecodeAll(b)
	if err != nil {
		return err
	}
	for _, v := range vals {
		out, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	}
	return nil
}
