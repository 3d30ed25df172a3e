/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/sabouaram/unicaster/internal/errcode"
	"github.com/sabouaram/unicaster/internal/logging"
)

// LoadFile layers the optional INI configuration file (§6) on top of c.
// Absent keys keep whatever c already holds (the CLI defaults), matching
// "Absent file => defaults". Sections: LOGGING, CONNECTION, KEEP-ALIVE.
func (c *Config) LoadFile(path string) *errcode.Error {
	if path == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")

	if err := v.ReadInConfig(); err != nil {
		return errcode.New(errcode.ConfigFileParse, err)
	}

	if s := v.GetString("LOGGING.logging_level"); s != "" {
		c.LogLevel = logging.ParseLevel(s)
	}

	if v.IsSet("CONNECTION.receive_buffer_size") {
		c.ReceiveBufferSize = v.GetInt("CONNECTION.receive_buffer_size")
	}
	if v.IsSet("CONNECTION.packet_queue_size") {
		c.PacketQueueSize = v.GetInt("CONNECTION.packet_queue_size")
	}
	if v.IsSet("CONNECTION.client_connection_timeout") {
		c.ClientConnectionTimeout = seconds(v.GetInt("CONNECTION.client_connection_timeout"))
	}
	if v.IsSet("CONNECTION.server_connection_timeout") {
		c.ServerConnectionTimeout = seconds(v.GetInt("CONNECTION.server_connection_timeout"))
	}
	if v.IsSet("CONNECTION.server_peer_connection_timeout") {
		c.ServerPeerConnTimeout = seconds(v.GetInt("CONNECTION.server_peer_connection_timeout"))
	}

	if v.IsSet("KEEP-ALIVE.ping_interval") {
		c.PingInterval = seconds(v.GetInt("KEEP-ALIVE.ping_interval"))
	}
	if v.IsSet("KEEP-ALIVE.ping_timeout") {
		c.PingTimeout = seconds(v.GetInt("KEEP-ALIVE.ping_timeout"))
	}

	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
