/*
 Licensed to the Apache Software Foundation (ASF) under one
 or more contributor license agreements.  See the NOTICE file
 distributed with this work for additional information
 regarding copyright ownership.  The ASF licenses this file
 to you under the Apache License, Version 2.0 (the
 "License"); you may not use this file except in compliance
 with the License.  You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package main

import (
	"log"
	"os"
	"time"

	"github.com/apache/yunikorn-placement/pkg/common/configs"
	"github.com/apache/yunikorn-placement/pkg/scheduler"
)

/*
A utility command to load a placement configuration file and check its validity.
The partitions, QOS and buckets are built the way the scheduling loop builds them.
*/
func main() {
	if len(os.Args) != 2 {
		log.Println("Usage: " + os.Args[0] + " <placement-config-file>")
		os.Exit(1)
	}
	configFile := os.Args[1]
	content, err := os.ReadFile(configFile)
	if err != nil {
		log.Println(err)
		os.Exit(2)
	}
	conf, err := configs.LoadPlacementConfigFromByteArray(content)
	if err != nil {
		log.Println(err)
		os.Exit(3)
	}
	ctx, err := scheduler.NewContext(conf, time.Now(), nil, nil)
	if err != nil {
		log.Println(err)
		os.Exit(4)
	}
	for _, p := range ctx.GetCluster().GetPartitions() {
		log.Printf("partition %s: backfill %s, reservation %s, allocation %s",
			p.Name, p.BackfillPolicy, p.ReservationPolicy, p.NodeAllocationPolicy)
	}
	log.Printf("config %s is valid, checksum %s", configFile, conf.Checksum)
}
